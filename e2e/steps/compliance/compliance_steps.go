package compliance

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context these steps need.
type TestContext interface {
	Actor(name, role string) (string, error)
	ActorID(name string) (string, error)
	Expect(ctx context.Context, method, path, as string, body any, status int) error
	Field(path string) (any, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &complianceSteps{tc: tc}

	ctx.Step(`^"([^"]*)" records a "(Read|Write)" of "([^"]*)" data about "([^"]*)"$`, steps.recordAccess)
	ctx.Step(`^"([^"]*)" records a "(Read|Write)" of "([^"]*)" data about a stranger$`, steps.recordStrangerAccess)
	ctx.Step(`^the access should be recorded as (authorized|unauthorized)$`, steps.accessRecordedAs)
	ctx.Step(`^the unauthorized access ratio of "([^"]*)" should be ([\d.]+)$`, steps.unauthorizedRatio)
	ctx.Step(`^the exposure score of "([^"]*)" should be ([\d.]+)$`, steps.exposureScore)
	ctx.Step(`^"([^"]*)" scans "([^"]*)"$`, steps.scan)
	ctx.Step(`^an open "([^"]*)" violation should exist for "([^"]*)"$`, steps.openViolation)
}

type complianceSteps struct {
	tc TestContext
}

func (s *complianceSteps) recordAccess(ctx context.Context, org, accessType, category, citizen string) error {
	citizenID, err := s.tc.ActorID(citizen)
	if err != nil {
		return err
	}
	return s.append(ctx, org, accessType, category, citizenID)
}

func (s *complianceSteps) recordStrangerAccess(ctx context.Context, org, accessType, category string) error {
	id, err := s.tc.Actor("stranger", "citizen")
	if err != nil {
		return err
	}
	return s.append(ctx, org, accessType, category, id)
}

func (s *complianceSteps) append(ctx context.Context, org, accessType, category, citizenID string) error {
	return s.tc.Expect(ctx, "POST", "/v1/organization/access", org, map[string]string{
		"citizen_id":  citizenID,
		"data_type":   category,
		"purpose":     "scheduled clinical review",
		"access_type": accessType,
	}, 201)
}

func (s *complianceSteps) accessRecordedAs(ctx context.Context, want string) error {
	got, err := s.tc.Field("authorized")
	if err != nil {
		return err
	}
	if got != (want == "authorized") {
		return fmt.Errorf("expected the entry to be %s, authorized=%v", want, got)
	}
	return nil
}

func (s *complianceSteps) unauthorizedRatio(ctx context.Context, org, want string) error {
	if err := s.tc.Expect(ctx, "GET", "/v1/organization/compliance", org, nil, 200); err != nil {
		return err
	}
	return s.numberShouldBe("unauthorized_ratio", want)
}

func (s *complianceSteps) exposureScore(ctx context.Context, citizen, want string) error {
	if err := s.tc.Expect(ctx, "GET", "/v1/citizen/exposure", citizen, nil, 200); err != nil {
		return err
	}
	return s.numberShouldBe("score", want)
}

func (s *complianceSteps) scan(ctx context.Context, officer, org string) error {
	if _, err := s.tc.Actor(officer, "oversight"); err != nil {
		return err
	}
	orgID, err := s.tc.ActorID(org)
	if err != nil {
		return err
	}
	return s.tc.Expect(ctx, "POST", "/v1/oversight/organizations/"+orgID+"/scan", officer, nil, 200)
}

func (s *complianceSteps) openViolation(ctx context.Context, issue, org string) error {
	orgID, err := s.tc.ActorID(org)
	if err != nil {
		return err
	}
	if _, err := s.tc.Actor("auditor", "oversight"); err != nil {
		return err
	}
	if err := s.tc.Expect(ctx, "GET", "/v1/oversight/violations?unresolved=true&organization_id="+orgID, "auditor", nil, 200); err != nil {
		return err
	}
	list, err := s.tc.Field("violations")
	if err != nil {
		return err
	}
	items, _ := list.([]any)
	for _, raw := range items {
		if v := raw.(map[string]any); v["issue_type"] == issue {
			return nil
		}
	}
	return fmt.Errorf("no open %s violation among %d", issue, len(items))
}

func (s *complianceSteps) numberShouldBe(field, want string) error {
	expected, err := strconv.ParseFloat(want, 64)
	if err != nil {
		return err
	}
	got, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	n, ok := got.(float64)
	if !ok || math.Abs(n-expected) > 0.001 {
		return fmt.Errorf("%s: expected %v, got %v", field, expected, got)
	}
	return nil
}
