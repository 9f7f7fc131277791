package epub

import (
	"encoding/xml"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Package mirrors the OPF package document for parsing.
type Package struct {
	XMLName          xml.Name `xml:"package"`
	Version          string   `xml:"version,attr"`
	UniqueIdentifier string   `xml:"unique-identifier,attr"`
	Metadata         struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Identifier []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Language    string   `xml:"language"`
		Publisher   string   `xml:"publisher"`
		Date        string   `xml:"date"`
		Description string   `xml:"description"`
		Subject     []string `xml:"subject"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc     string `xml:"toc,attr"`
		Itemref []struct {
			Idref string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func parsePackage(data []byte) (*Package, error) {
	pkg := &Package{}
	err := xml.Unmarshal(data, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return pkg, nil
}

// opfBasePath returns the prefix to join manifest hrefs with. Hrefs are
// relative to the OPF file's location; when the OPF sits at the archive root
// the prefix is empty.
func opfBasePath(opfPath string) string {
	basePath := filepath.Dir(opfPath)
	if basePath == "." {
		return ""
	}
	return basePath + "/"
}

// metaProperties groups refinement metas by the ID they refine, and
// metaContent collects legacy name/content metas.
func metaMaps(pkg *Package) (map[string]map[string]string, map[string]string) {
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.ReplaceAll(m.Refines, "#", "")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}
	return metaProperties, metaContent
}
