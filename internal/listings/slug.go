package listings

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/alo17/ilan-backend/pkg/db/models"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
)

const maxSlugTitleLength = 60

var (
	refPattern      = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	nonSlugRunes    = regexp.MustCompile(`[^a-z0-9]+`)
	turkishReplacer = strings.NewReplacer("ı", "i", "İ", "i", "I", "i")
)

// Slugify turns a listing title into an ASCII URL segment, folding Turkish letters.
func Slugify(title string) string {
	folded := turkishReplacer.Replace(title)
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), folded)
	if err != nil {
		stripped = folded
	}
	slug := nonSlugRunes.ReplaceAllString(strings.ToLower(stripped), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugTitleLength {
		slug = strings.TrimRight(slug[:maxSlugTitleLength], "-")
	}
	return slug
}

// BuildSlug returns the public reference for a listing: the slugged title followed by
// the id.
func BuildSlug(title, id string) string {
	slug := Slugify(title)
	if slug == "" {
		return id
	}
	return slug + "-" + id
}

// ParseRef extracts the listing id from a slug or a bare id.
func ParseRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "listing reference is required")
	}
	if !refPattern.MatchString(ref) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "listing reference contains invalid characters")
	}
	ref = strings.ToLower(ref)
	if idx := strings.LastIndex(ref, "-"); idx >= 0 {
		if tail := ref[idx+1:]; models.IsID(tail) {
			return tail, nil
		}
	}
	return ref, nil
}
