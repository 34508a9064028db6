package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"routeplanner/internal/model"
)

// Validator wraps a shared validator with English error messages.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, trans)
	return &Validator{v: v, trans: trans}
}

// Struct validates x and returns one readable message per failed field.
func (val *Validator) Struct(x any) []string {
	err := val.v.Struct(x)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, e.Namespace()+": "+e.Translate(val.trans))
	}
	return out
}

func (s *Server) validateTourRequest(w http.ResponseWriter, r *http.Request, req *model.TourRequest) bool {
	if msgs := s.Validate.Struct(req); len(msgs) > 0 {
		writeProblemBody(w, Problem{Type: "about:blank", Title: "Invalid tour request", Status: http.StatusBadRequest, Instance: r.URL.Path, Errors: msgs})
		return false
	}
	return true
}
