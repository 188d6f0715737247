package school

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
)

var (
	resTypeTag  = "restype"
	resTypeText = "{0} must be one of: link, file, note"

	errUnknownClassText   = "unknown class group"
	errClassExistsText    = "a class group with this name already exists"
	errExpiryInPastText   = "expiry must be in the future"
	errDuplicateOptionTxt = "poll options must be unique"
)

// ClassDirectory tells which class groups exist.
type ClassDirectory interface {
	ClassGroupExists(name string) bool
}

// InitValidators registers the school validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(resTypeTag, resTypeValidation)
	core.RegisterCustomTranslation(validate, translator, resTypeTag, resTypeText)
}

func resTypeValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, typ := range ResourceTypes {
		if val == typ {
			return true
		}
	}
	return false
}

type (
	AnnouncementForm struct {
		Title       string     `json:"title" validate:"required,notblank"`
		Subject     string     `json:"subject" validate:"required,notblank"`
		MeetLink    *string    `json:"meet_link" validate:"omitempty,url"`
		Date        *time.Time `json:"date"`
		IsUrgent    bool       `json:"is_urgent"`
		TargetClass *string    `json:"target_class"`
	}

	ExamForm struct {
		Subject         string  `json:"subject" validate:"required,notblank"`
		Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
		StartTime       string  `json:"start_time" validate:"required,hhmm"`
		DurationMinutes int     `json:"duration_minutes" validate:"required,min=1,max=1440"`
		Room            string  `json:"room" validate:"required,notblank"`
		Notes           *string `json:"notes"`
		TargetClass     *string `json:"target_class"`
	}

	PollOptionForm struct {
		ID   string `json:"id"`
		Text string `json:"text" validate:"required,notblank"`
	}

	PollForm struct {
		Title       string           `json:"title" validate:"required,notblank"`
		Options     []PollOptionForm `json:"options" validate:"required,min=2,max=20,dive"`
		IsAnonymous bool             `json:"is_anonymous"`
		ExpiresAt   time.Time        `json:"expires_at" validate:"required"`
		TargetClass *string          `json:"target_class"`
	}

	ResourceForm struct {
		Title       string  `json:"title" validate:"required,notblank"`
		Type        string  `json:"type" validate:"required,restype"`
		Content     string  `json:"content" validate:"required,notblank"`
		Subject     string  `json:"subject" validate:"required,notblank"`
		Description *string `json:"description"`
		TargetClass *string `json:"target_class"`
	}

	ClassGroupForm struct {
		Name string `json:"name" validate:"required,notblank,max=64"`
	}

	SettingsForm struct {
		Name       string  `json:"name" validate:"required,notblank"`
		ThemeColor string  `json:"theme_color" validate:"required,hexcolor"`
		LogoURL    *string `json:"logo_url" validate:"omitempty,url"`
	}
)

func (f *AnnouncementForm) Validate(validate *validator.Validate, dir ClassDirectory) error {
	f.Title = core.CleanString(f.Title)
	f.Subject = core.CleanString(f.Subject)
	f.MeetLink = core.CleanOptional(f.MeetLink)
	f.TargetClass = core.CleanOptional(f.TargetClass)

	if err := validate.Struct(f); err != nil {
		return err
	}
	return validateTargetClass(f.TargetClass, dir)
}

func (f *ExamForm) Validate(validate *validator.Validate, dir ClassDirectory) error {
	f.Subject = core.CleanString(f.Subject)
	f.Date = core.CleanString(f.Date)
	f.StartTime = core.CleanString(f.StartTime)
	f.Room = core.CleanString(f.Room)
	f.Notes = core.CleanOptional(f.Notes)
	f.TargetClass = core.CleanOptional(f.TargetClass)

	if err := validate.Struct(f); err != nil {
		return err
	}
	return validateTargetClass(f.TargetClass, dir)
}

// Day returns the exam day at UTC midnight. The form must be valid.
func (f *ExamForm) Day() time.Time {
	day, _ := time.Parse("2006-01-02", f.Date)
	return day
}

// Validate checks the poll. A new poll must expire after `now`.
func (f *PollForm) Validate(validate *validator.Validate, dir ClassDirectory, now time.Time, isNew bool) error {
	f.Title = core.CleanString(f.Title)
	f.TargetClass = core.CleanOptional(f.TargetClass)
	seen := make(map[string]bool, len(f.Options))
	var duplicates bool
	for i := range f.Options {
		f.Options[i].ID = core.CleanString(f.Options[i].ID)
		f.Options[i].Text = core.CleanString(f.Options[i].Text)
		key := strings.ToLower(f.Options[i].Text)
		if key != "" && seen[key] {
			duplicates = true
		}
		seen[key] = true
	}

	if err := validate.Struct(f); err != nil {
		return err
	}
	if duplicates {
		return core.NewValidationError(
			errors.New(errDuplicateOptionTxt),
			core.FieldError{Field: "options", Error: errDuplicateOptionTxt},
		)
	}
	if isNew && !f.ExpiresAt.After(now) {
		return core.NewValidationError(
			errors.New(errExpiryInPastText),
			core.FieldError{Field: "expires_at", Error: errExpiryInPastText},
		)
	}
	return validateTargetClass(f.TargetClass, dir)
}

func (f *ResourceForm) Validate(validate *validator.Validate, dir ClassDirectory) error {
	f.Title = core.CleanString(f.Title)
	f.Type = core.CleanString(f.Type, true /* lower */)
	f.Content = core.CleanString(f.Content)
	f.Subject = core.CleanString(f.Subject)
	f.Description = core.CleanOptional(f.Description)
	f.TargetClass = core.CleanOptional(f.TargetClass)

	if err := validate.Struct(f); err != nil {
		return err
	}
	if f.Type == ResourceLink {
		if err := validate.Var(f.Content, "url"); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "content", Error: "content must be a valid URL"})
		}
	}
	return validateTargetClass(f.TargetClass, dir)
}

func (f *ClassGroupForm) Validate(validate *validator.Validate, dir ClassDirectory) error {
	f.Name = core.CleanString(f.Name)
	if err := validate.Struct(f); err != nil {
		return err
	}
	if dir.ClassGroupExists(f.Name) {
		return core.NewValidationError(
			errors.New(errClassExistsText),
			core.FieldError{Field: "name", Error: errClassExistsText},
		)
	}
	return nil
}

func (f *SettingsForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.ThemeColor = core.CleanString(f.ThemeColor)
	f.LogoURL = core.CleanOptional(f.LogoURL)
	return validate.Struct(f)
}

func validateTargetClass(target *string, dir ClassDirectory) error {
	if target != nil && !dir.ClassGroupExists(*target) {
		return core.NewValidationError(
			errors.New(errUnknownClassText),
			core.FieldError{Field: "target_class", Error: errUnknownClassText},
		)
	}
	return nil
}
