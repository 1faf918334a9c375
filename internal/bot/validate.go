package bot

import (
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/freddie-nelson/ig-bot/internal/types"
)

var (
	rePostURL  = regexp.MustCompile(`^(https?://)?(www\.)?instagram\.com/p/([a-zA-Z0-9_-]+)/?$`)
	rePostID   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	reUsername = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	rePhone    = regexp.MustCompile(`^\+?[0-9][0-9 ]{3,19}$`)
)

// Field limits enforced by the profile editor.
const (
	MaxBioLength      = 150
	MaxNameLength     = 63
	MaxUsernameLength = 29
	MinPasswordLength = 6
	MaxCommentLength  = 2200
)

// MediaExtensions lists the file types the upload wizard accepts.
var MediaExtensions = []string{"pjp", "pjpeg", "jpg", "jpeg", "jfif", "heic", "heif", "png", "m4v", "mp4", "mov"}

// NormalizePostID turns a post URL or bare id into the bare id.
func NormalizePostID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if m := rePostURL.FindStringSubmatch(s); m != nil {
		return m[3], nil
	}
	if rePostID.MatchString(s) {
		return s, nil
	}
	return "", invalid("post identifier", raw, "must be a post id or an instagram.com/p/ URL")
}

// PostIDFromIdentifier normalizes any identifier to a bare post id.
func PostIDFromIdentifier(id types.PostIdentifier) (string, error) {
	if id == nil {
		return "", invalid("post identifier", "", "missing")
	}
	if ref, ok := id.(types.PostRef); ok {
		return NormalizePostID(string(ref))
	}
	raw := id.PostID()
	if !rePostID.MatchString(raw) {
		return "", invalid("post identifier", raw, "id contains invalid characters")
	}
	return raw, nil
}

func (b *Bot) postURL(id string) string {
	return b.url("/p/" + id + "/")
}

func (b *Bot) profileURL(username string) string {
	return b.url("/" + username + "/")
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return invalid("username", username, "must not be empty")
	case len(username) > MaxUsernameLength:
		return invalid("username", username, "must be shorter than 30 characters")
	case !reUsername.MatchString(username):
		return invalid("username", username, "may only contain letters, numbers, underscores and periods")
	}
	return nil
}

func validateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return invalid("bio", "", "must be at most 150 characters")
	}
	return nil
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return invalid("name", name, "must be shorter than 64 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", "", "must be at least 6 characters")
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return invalid("email", email, "not a valid email address")
	}
	return nil
}

func validateWebsite(website string) error {
	if website == "" {
		return nil
	}
	if _, err := validateURL(website); err != nil {
		return invalid("website", website, "must be an http or https URL")
	}
	return nil
}

func validatePhone(phone string) error {
	if !rePhone.MatchString(phone) {
		return invalid("phone", phone, "must be digits with an optional leading +")
	}
	return nil
}

func validateGender(g types.Gender, custom string) error {
	switch g {
	case types.GenderMale, types.GenderFemale, types.GenderPreferNotToSay:
		return nil
	case types.GenderCustom:
		if strings.TrimSpace(custom) == "" {
			return invalid("gender", string(g), "custom gender needs a value")
		}
		return nil
	}
	return invalid("gender", string(g), "must be male, female, custom or prefer-not-to-say")
}

func validateComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("comment", "", "must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return invalid("comment", "", "must be at most 2200 characters")
	}
	return nil
}

// resolveMedia makes every path absolute and checks it exists with an accepted extension.
func resolveMedia(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, invalid("media", "", "at least one file is required")
	}

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, invalid("media", p, err.Error())
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, invalid("media", p, "file does not exist")
		}
		if info.IsDir() {
			return nil, invalid("media", p, "is a directory")
		}
		if !isMediaFile(abs) {
			return nil, &UnsupportedMediaError{Path: abs, Reason: "extension must be one of " + strings.Join(MediaExtensions, ", ")}
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

func isMediaFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range MediaExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
