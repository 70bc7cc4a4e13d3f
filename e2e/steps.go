package e2e

import (
	"github.com/cucumber/godog"

	"truconn/e2e/steps/common"
	"truconn/e2e/steps/compliance"
	"truconn/e2e/steps/consent"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	consent.RegisterSteps(ctx, tc)
	compliance.RegisterSteps(ctx, tc)
}
