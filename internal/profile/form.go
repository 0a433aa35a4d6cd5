package profile

import (
	"anonchat/app/internal/models"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// BirthYearSpan is how many years back the birth year picker reaches.
const BirthYearSpan = 100

// Form holds the user-entered profile fields.
type Form struct {
	Name                  string `validate:"required"`
	BirthYear             int    `validate:"required,birthyear"`
	Gender                string `validate:"required,gender"`
	GenderPreference      string `validate:"required,genderpref"`
	Interests             []string
	InterestFilterEnabled bool
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	nowYear      = func() int { return time.Now().Year() }
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("birthyear", func(fl validator.FieldLevel) bool {
			year := int(fl.Field().Int())
			current := nowYear()
			return year <= current && year > current-BirthYearSpan
		})
		_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
			_, ok := models.NormalizeGender(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("genderpref", func(fl validator.FieldLevel) bool {
			_, ok := models.NormalizeGenderPreference(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

// BirthYears lists the selectable birth years, newest first.
func BirthYears() []int {
	current := nowYear()
	years := make([]int, BirthYearSpan)
	for i := range years {
		years[i] = current - i
	}
	return years
}

// Validate checks the fields required for submission. Interests are optional.
func (f Form) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	return formValidator().Struct(f)
}

// CanSubmit reports whether the confirm action should be enabled.
func (f Form) CanSubmit() bool {
	return f.Validate() == nil
}

// AddInterest appends a trimmed, non-empty interest that is not already present.
func (f *Form) AddInterest(interest string) bool {
	interest = strings.TrimSpace(interest)
	if interest == "" {
		return false
	}
	for _, existing := range f.Interests {
		if strings.EqualFold(existing, interest) {
			return false
		}
	}
	f.Interests = append(f.Interests, interest)
	return true
}

// RemoveInterest drops an interest from the list.
func (f *Form) RemoveInterest(interest string) {
	kept := f.Interests[:0]
	for _, existing := range f.Interests {
		if existing != interest {
			kept = append(kept, existing)
		}
	}
	f.Interests = kept
}

// apply merges the form into an existing identity, keeping its ID.
func (f Form) apply(p models.Participant) models.Participant {
	gender, _ := models.NormalizeGender(f.Gender)
	pref, _ := models.NormalizeGenderPreference(f.GenderPreference)

	p.DisplayName = strings.TrimSpace(f.Name)
	p.BirthYear = f.BirthYear
	p.Gender = gender
	p.GenderPreference = pref
	p.Interests = append([]string(nil), f.Interests...)
	p.InterestFilterEnabled = f.InterestFilterEnabled
	return p
}

// FormFromParticipant pre-fills the form from a persisted identity.
func FormFromParticipant(p models.Participant) Form {
	return Form{
		Name:                  p.DisplayName,
		BirthYear:             p.BirthYear,
		Gender:                string(p.Gender),
		GenderPreference:      string(p.GenderPreference),
		Interests:             append([]string(nil), p.Interests...),
		InterestFilterEnabled: p.InterestFilterEnabled,
	}
}
