package manifest

import (
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/abadojack/whatlanggo"
	"github.com/araddon/dateparse"
)

// Wikifactory license sentinels.
const (
	LicenseNotAvailable = "N/A"
	LicenseBad          = "BAD"
	LicenseForbidden    = "FORBIDDEN"
)

// WikifactoryURL is the host synthesized repo URLs point at.
const WikifactoryURL = "https://wikifactory.com"

// WikifactoryNode is a project node of the Wikifactory GraphQL API.
type WikifactoryNode struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	Slug                 string               `json:"slug"`
	LastActivityAt       string               `json:"lastActivityAt"`
	License              *WikifactoryLicense  `json:"license"`
	Image                *WikifactoryImage    `json:"image"`
	CreatorProfile       *WikifactoryProfile  `json:"creatorProfile"`
	Space                *WikifactorySpace    `json:"space"`
	Description          string               `json:"description"`
	ContributionUpstream *WikifactoryUpstream `json:"contributionUpstream"`
}

// WikifactoryLicense is a project license. The API spells the
// abbreviation field "abreviation".
type WikifactoryLicense struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Abreviation string `json:"abreviation"`
}

// WikifactoryImage is the project cover image.
type WikifactoryImage struct {
	Permalink string `json:"permalink"`
}

// WikifactoryProfile is the creator of a project.
type WikifactoryProfile struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

type WikifactorySpace struct {
	ID      string `json:"id"`
	Content struct {
		Slug     string `json:"slug"`
		TypeName string `json:"__typename"`
	} `json:"content"`
}

// WikifactoryUpstream is the latest contribution of a project.
type WikifactoryUpstream struct {
	Files []WikifactoryFile `json:"files"`
}

type WikifactoryFile struct {
	Filename string `json:"filename"`
	Dirname  string `json:"dirname"`
	File     *struct {
		MimeType  string `json:"mimeType"`
		Permalink string `json:"permalink"`
	} `json:"file"`
}

// SpaceSlug returns the slug of the project's space, or "" if unknown.
func (n *WikifactoryNode) SpaceSlug() string {
	if n.Space == nil {
		return ""
	}
	return n.Space.Content.Slug
}

// WikifactoryVersion formats lastActivityAt as YYYYMMDDHHMMSS in the
// timestamp's own offset. Timestamps without offset are read as UTC.
func WikifactoryVersion(lastActivityAt string) (string, error) {
	t, err := dateparse.ParseIn(lastActivityAt, time.UTC)
	if err != nil {
		return "", fmt.Errorf("lastActivityAt %q: %w", lastActivityAt, err)
	}
	return t.Format("20060102150405"), nil
}

// NormalizeWikifactory maps a Wikifactory project node onto the canonical
// schema. A node without creator profile yields MissingCreatorError.
func (n *Normalizer) NormalizeWikifactory(node *WikifactoryNode) (*Manifest, error) {
	if node == nil {
		return nil, &ParseError{Format: "wikifactory", Err: errEmptyDocument}
	}
	if node.CreatorProfile == nil || node.CreatorProfile.Username == "" {
		return nil, &MissingCreatorError{NodeID: node.ID, Slug: node.Slug}
	}

	version, err := WikifactoryVersion(node.LastActivityAt)
	if err != nil {
		return nil, &ParseError{Format: "wikifactory", Err: err}
	}

	m := &Manifest{
		Name:        node.Name,
		Repo:        fmt.Sprintf("%s/%s/%s", WikifactoryURL, node.CreatorProfile.Username, node.Slug),
		Version:     version,
		SPDXLicense: n.wikifactoryLicense(node),
		Licensor:    node.CreatorProfile.FullName,
		Function:    wikifactoryFunction(node.Description),
		Files:       wikifactoryFiles(node),
	}
	if node.Image != nil {
		m.Image = node.Image.Permalink
	}
	m.DocumentationLanguage = n.language(node.Description)
	return m, nil
}

func (n *Normalizer) wikifactoryLicense(node *WikifactoryNode) string {
	if node.License == nil {
		return LicenseNotAvailable
	}
	id := node.License.Abreviation
	if id == "" {
		id = "na"
	}
	if n.licenses == nil || !n.licenses.IsSPDX(id) {
		n.logger.Debug("License is not a valid SPDX id", "license", id, "project", node.Slug)
		return LicenseBad
	}
	if n.licenses.IsForbidden(id) {
		n.logger.Warn("License is forbidden", "license", id, "project", node.Slug)
		return LicenseForbidden
	}
	return id
}

func wikifactoryFunction(description string) string {
	desc := strings.ReplaceAll(description, "<p>", "")
	desc = strings.ReplaceAll(desc, "</p>", "\n")
	return strings.TrimSpace(desc)
}

func wikifactoryFiles(node *WikifactoryNode) []File {
	if node.ContributionUpstream == nil {
		return nil
	}
	files := make([]File, 0, len(node.ContributionUpstream.Files))
	for _, f := range node.ContributionUpstream.Files {
		if f.File == nil || f.File.Permalink == "" {
			continue
		}
		files = append(files, File{
			Name:      f.Dirname + "/" + f.Filename,
			Permalink: f.File.Permalink,
			MimeType:  f.File.MimeType,
		})
	}
	return files
}

// language detects the description language. Descriptions of two words or
// fewer are assumed to be English.
func (n *Normalizer) language(description string) string {
	if description == "" {
		return ""
	}
	if len(strings.Split(description, " ")) <= 2 {
		return "en"
	}
	return n.detector.Detect(plainText(description))
}

// plainText strips markup so detection sees prose only.
func plainText(html string) string {
	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(html)
	if err != nil || strings.TrimSpace(text) == "" {
		return html
	}
	return text
}

// LanguageDetector returns an ISO 639-1 code for a text, or "" if unknown.
type LanguageDetector interface {
	Detect(text string) string
}

// WhatlangDetector detects languages with whatlanggo.
type WhatlangDetector struct{}

// Detect implements LanguageDetector.
func (WhatlangDetector) Detect(text string) string {
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}
