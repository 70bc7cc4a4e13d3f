package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context these steps need.
type TestContext interface {
	Actor(name, role string) (string, error)
	ActorID(name string) (string, error)
	Expect(ctx context.Context, method, path, as string, body any, status int) error
	Field(path string) (any, error)
	SetGrant(citizen, org, category, id string)
	Grant(citizen, org, category string) (string, error)
	SetRequest(id string)
	Request() string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	ctx.Step(`^a citizen "([^"]*)" who has denied "([^"]*)"$`, steps.onboardDenying)
	ctx.Step(`^"([^"]*)" requests "([^"]*)" data from "([^"]*)" for "([^"]*)"$`, steps.createRequest)
	ctx.Step(`^"([^"]*)" approves the pending request$`, steps.approve)
	ctx.Step(`^"([^"]*)" sets "([^"]*)" consent to denied$`, steps.deny)
	ctx.Step(`^"([^"]*)" grants "([^"]*)" access to "([^"]*)"$`, steps.grant)
	ctx.Step(`^"([^"]*)" revokes the grants to "([^"]*)" for "([^"]*)"$`, steps.revoke)

	ctx.Step(`^"([^"]*)" consent for "([^"]*)" should be allowed only for "([^"]*)"$`, steps.consentAllowedFor)
	ctx.Step(`^"([^"]*)" should have an? (active|revoked) "([^"]*)" grant to "([^"]*)"$`, steps.grantStatus)
}

type consentSteps struct {
	tc TestContext
}

var allCategories = []string{"Biometric", "Contact", "Financial", "Health", "Identity"}

// onboardDenying onboards a citizen with every category denied.
func (s *consentSteps) onboardDenying(ctx context.Context, name, _ string) error {
	if _, err := s.tc.Actor(name, "citizen"); err != nil {
		return err
	}
	choices := make([]map[string]any, 0, len(allCategories))
	for _, c := range allCategories {
		choices = append(choices, map[string]any{"category": c, "allowed": false, "duration": "Ongoing"})
	}
	return s.tc.Expect(ctx, "POST", "/v1/citizen/onboarding", name, map[string]any{"choices": choices}, 201)
}

func (s *consentSteps) createRequest(ctx context.Context, org, category, citizen, purpose string) error {
	citizenID, err := s.tc.ActorID(citizen)
	if err != nil {
		return err
	}
	if err := s.tc.Expect(ctx, "POST", "/v1/organization/requests", org, map[string]string{
		"citizen_id": citizenID, "data_type": category, "purpose": purpose,
	}, 201); err != nil {
		return err
	}
	id, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.SetRequest(fmt.Sprint(id))
	return nil
}

func (s *consentSteps) approve(ctx context.Context, citizen string) error {
	if s.tc.Request() == "" {
		return fmt.Errorf("no pending request in this scenario")
	}
	if err := s.tc.Expect(ctx, "POST", "/v1/requests/"+s.tc.Request()+"/approve", citizen, nil, 200); err != nil {
		return err
	}
	return s.recordGrant(citizen, "grant")
}

func (s *consentSteps) deny(ctx context.Context, citizen, category string) error {
	return s.tc.Expect(ctx, "PUT", "/v1/citizen/consents/"+category, citizen, map[string]any{"allowed": false}, 200)
}

// grant allows each category for the organization and then grants it.
func (s *consentSteps) grant(ctx context.Context, citizen, org, categories string) error {
	orgID, err := s.tc.ActorID(org)
	if err != nil {
		return err
	}
	for _, category := range splitList(categories) {
		if err := s.tc.Expect(ctx, "PUT", "/v1/citizen/consents/"+category, citizen, map[string]any{
			"allowed": true, "organizations": []string{orgID},
		}, 200); err != nil {
			return err
		}
		if err := s.tc.Expect(ctx, "POST", "/v1/citizen/grants", citizen, map[string]string{
			"organization_id": orgID, "data_type": category, "purpose": "ongoing care coordination",
		}, 201); err != nil {
			return err
		}
		if err := s.recordGrant(citizen, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *consentSteps) revoke(ctx context.Context, citizen, org, categories string) error {
	orgID, err := s.tc.ActorID(org)
	if err != nil {
		return err
	}
	for _, category := range splitList(categories) {
		id, err := s.tc.Grant(citizen, orgID, category)
		if err != nil {
			return err
		}
		if err := s.tc.Expect(ctx, "POST", "/v1/grants/"+id+"/revoke", citizen, nil, 200); err != nil {
			return err
		}
	}
	return nil
}

func (s *consentSteps) consentAllowedFor(ctx context.Context, citizen, category, org string) error {
	orgID, err := s.tc.ActorID(org)
	if err != nil {
		return err
	}
	if err := s.tc.Expect(ctx, "GET", "/v1/citizen/consents", citizen, nil, 200); err != nil {
		return err
	}
	consents, err := s.tc.Field("consents")
	if err != nil {
		return err
	}
	for _, raw := range consents.([]any) {
		c := raw.(map[string]any)
		if c["category"] != category {
			continue
		}
		orgs, _ := c["organizations"].([]any)
		if c["allowed"] != true || len(orgs) != 1 || orgs[0] != orgID {
			return fmt.Errorf("consent %s: allowed=%v organizations=%v", category, c["allowed"], orgs)
		}
		return nil
	}
	return fmt.Errorf("no consent for %s", category)
}

func (s *consentSteps) grantStatus(ctx context.Context, citizen, status, category, org string) error {
	orgID, err := s.tc.ActorID(org)
	if err != nil {
		return err
	}
	if err := s.tc.Expect(ctx, "GET", "/v1/citizen/grants", citizen, nil, 200); err != nil {
		return err
	}
	grants, err := s.tc.Field("grants")
	if err != nil {
		return err
	}
	for _, raw := range grants.([]any) {
		g := raw.(map[string]any)
		if g["organization_id"] == orgID && g["data_type"] == category {
			if g["status"] != status {
				return fmt.Errorf("grant %s: expected %s, got %v", category, status, g["status"])
			}
			return nil
		}
	}
	return fmt.Errorf("no %s grant to %s", category, org)
}

// recordGrant remembers the grant in the last response, found at prefix,
// keyed by citizen name, organization id and category.
func (s *consentSteps) recordGrant(citizen, prefix string) error {
	field := func(name string) (any, error) {
		if prefix == "" {
			return s.tc.Field(name)
		}
		return s.tc.Field(prefix + "." + name)
	}
	id, err := field("id")
	if err != nil {
		return err
	}
	orgID, err := field("organization_id")
	if err != nil {
		return err
	}
	category, err := field("data_type")
	if err != nil {
		return err
	}
	s.tc.SetGrant(citizen, fmt.Sprint(orgID), fmt.Sprint(category), fmt.Sprint(id))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
