package service

import (
	"fmt"
	"net/mail"
	"regexp"

	"github.com/watsh-io/backend/internal/errs"
)

const (
	minSlugLen        = 3
	maxSlugLen        = 36
	maxDescriptionLen = 200
)

var (
	slugRe        = regexp.MustCompile(`^[a-z0-9_-]+$`)
	descriptionRe = regexp.MustCompile(`^[a-zA-Z0-9_ -]*$`)
)

// validSlug applies to project, environment and branch slugs. Item slugs are free-form.
func validSlug(slug string) error {
	if len(slug) < minSlugLen || len(slug) > maxSlugLen || !slugRe.MatchString(slug) {
		return fmt.Errorf("slug %q: %w", slug, errs.ErrInvalidInput)
	}
	return nil
}

func validDescription(d string) error {
	if len(d) > maxDescriptionLen || !descriptionRe.MatchString(d) {
		return fmt.Errorf("description: %w", errs.ErrInvalidInput)
	}
	return nil
}

func validEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email %q: %w", email, errs.ErrInvalidInput)
	}
	return nil
}
