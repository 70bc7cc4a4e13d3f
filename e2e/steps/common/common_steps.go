package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is the part of the scenario context these steps need.
type TestContext interface {
	Actor(name, role string) (string, error)
	Do(ctx context.Context, method, path, as string, body any) error
	Expect(ctx context.Context, method, path, as string, body any, status int) error
	BindActor(name, role, id string) error
	LastStatus() int
	LastHeader(key string) string
	Field(path string) (any, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^an oversight officer "([^"]*)"$`, steps.oversightOfficer)
	ctx.Step(`^an organization "([^"]*)" in the "([^"]*)" sector$`, steps.registerOrganization)
	ctx.Step(`^an unauthenticated client requests "([^"]*)"$`, steps.unauthenticatedGet)
	ctx.Step(`^"([^"]*)" requests "([^"]*)"$`, steps.getAs)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response should include rate limit headers$`, steps.rateLimitHeaders)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) oversightOfficer(ctx context.Context, name string) error {
	_, err := s.tc.Actor(name, "oversight")
	return err
}

// registerOrganization registers through a dedicated oversight actor so
// features do not need to declare one.
func (s *commonSteps) registerOrganization(ctx context.Context, name, sector string) error {
	if _, err := s.tc.Actor("registrar", "oversight"); err != nil {
		return err
	}
	// Names are unique server-wide; suffix to keep reruns independent.
	unique := name + " " + uuid.NewString()[:8]
	if err := s.tc.Expect(ctx, "POST", "/v1/oversight/organizations", "registrar", map[string]string{
		"name": unique, "sector": sector, "status": "verified",
	}, 201); err != nil {
		return err
	}
	id, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	return s.tc.BindActor(name, "organization", fmt.Sprint(id))
}

func (s *commonSteps) unauthenticatedGet(ctx context.Context, path string) error {
	return s.tc.Do(ctx, "GET", path, "", nil)
}

func (s *commonSteps) getAs(ctx context.Context, name, path string) error {
	return s.tc.Do(ctx, "GET", path, name, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.LastStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d", status, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, path, want string) error {
	got, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %q: expected %q, got %v", path, want, got)
	}
	return nil
}

func (s *commonSteps) rateLimitHeaders(ctx context.Context) error {
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
		if s.tc.LastHeader(h) == "" {
			return fmt.Errorf("missing header %s", h)
		}
	}
	return nil
}
