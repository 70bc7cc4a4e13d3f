package handler

import (
	"net/http"
	"strings"

	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/httputil"
)

// body is a request payload that can tidy and check itself after decoding.
type body interface {
	normalize() error
}

// decode reads the JSON body into req and normalizes it. Parsing of ids and
// categories stays with the handler so each error names the field.
func decode(r *http.Request, req body) error {
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	return req.normalize()
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func (c *categoryChoice) normalize() error {
	trim(&c.Category)
	trim(&c.Duration)
	return nil
}

func (o *onboardRequest) normalize() error {
	for i := range o.Choices {
		if err := o.Choices[i].normalize(); err != nil {
			return err
		}
	}
	return nil
}

// A missing allowed flag must never read as a denial: denial cascades.
func (s *setConsentRequest) normalize() error {
	if s.Allowed == nil {
		return dErrors.New(dErrors.CodeValidation, "allowed is required")
	}
	trim(s.Duration)
	trim(s.Details)
	return nil
}

func (g *grantRequest) normalize() error {
	trim(&g.OrganizationID)
	trim(&g.DataType)
	trim(&g.Purpose)
	return nil
}

func (m *modifyGrantRequest) normalize() error {
	trim(m.Purpose)
	return nil
}

func (c *createRequestRequest) normalize() error {
	trim(&c.CitizenID)
	trim(&c.DataType)
	trim(&c.Purpose)
	return nil
}

func (c *clarificationRequest) normalize() error {
	trim(&c.Message)
	return nil
}
