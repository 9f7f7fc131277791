package records

type ListRecordsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=not_started suggestions_fetched applied"`
}

// UpdateRecordPayload lets a user accept a record's suggestions or override
// individual suggested fields before applying them.
type UpdateRecordPayload struct {
	Accepted    *bool    `json:"accepted,omitempty"`
	Note        *string  `json:"note,omitempty" validate:"omitempty,max=1000"`
	Title       *string  `json:"title,omitempty" validate:"omitempty,max=300"`
	Authors     []string `json:"authors,omitempty" validate:"omitempty,dive,max=200"`
	ISBN        *string  `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Language    *string  `json:"language,omitempty" validate:"omitempty,max=10"`
	Publisher   *string  `json:"publisher,omitempty" validate:"omitempty,max=200"`
	PublishDate *string  `json:"publish_date,omitempty" validate:"omitempty,max=50"`
	Summary     *string  `json:"summary,omitempty" validate:"omitempty,max=10000"`
	Genre       *string  `json:"genre,omitempty" validate:"omitempty,max=100"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
}
