package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"truconn/internal/organization/handler/mocks"
	"truconn/internal/organization/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type OrganizationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestOrganizationHandlerSuite(t *testing.T) {
	suite.Run(t, new(OrganizationHandlerSuite))
}

func (s *OrganizationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *OrganizationHandlerSuite) do(role domain.Role, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(requestcontext.WithPrincipal(req.Context(), domain.Principal{ID: uuid.New(), Role: role}))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *OrganizationHandlerSuite) TestRegister() {
	s.Run("creates organization", func() {
		org := &models.Organization{ID: domain.NewOrganizationID(), Name: "Acme", Status: models.StatusVerified, RegisteredAt: time.Now()}
		s.service.EXPECT().Register(gomock.Any(), "Acme", "finance", models.StatusVerified).Return(org, nil)

		rec := s.do(domain.RoleOversight, http.MethodPost, "/v1/oversight/organizations",
			registerRequest{Name: "Acme", Sector: "finance", Status: "verified"})

		s.Equal(http.StatusCreated, rec.Code)
		var got models.Organization
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal(org.ID, got.ID)
	})

	s.Run("duplicate name is a conflict", func() {
		s.service.EXPECT().Register(gomock.Any(), "Acme", "", models.Status("")).
			Return(nil, dErrors.New(dErrors.CodeConflict, "organization name must be unique"))

		rec := s.do(domain.RoleOversight, http.MethodPost, "/v1/oversight/organizations", registerRequest{Name: "Acme"})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("non-oversight role is forbidden", func() {
		rec := s.do(domain.RoleOrganization, http.MethodPost, "/v1/oversight/organizations", registerRequest{Name: "Acme"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("unknown status is rejected before the service", func() {
		rec := s.do(domain.RoleOversight, http.MethodPost, "/v1/oversight/organizations", registerRequest{Name: "Acme", Status: "gold"})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *OrganizationHandlerSuite) TestList() {
	s.service.EXPECT().List(gomock.Any(), models.StatusRevoked).Return(nil, nil)

	rec := s.do(domain.RoleOversight, http.MethodGet, "/v1/oversight/organizations?status=revoked", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"organizations":[]}`, rec.Body.String())
}

func (s *OrganizationHandlerSuite) TestSetStatus() {
	id := domain.NewOrganizationID()

	s.Run("revokes organization", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), id, models.StatusRevoked).
			Return(&models.Organization{ID: id, Status: models.StatusRevoked}, nil)
		rec := s.do(domain.RoleOversight, http.MethodPatch, "/v1/oversight/organizations/"+id.String(), statusRequest{Status: "revoked"})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("invalid id", func() {
		rec := s.do(domain.RoleOversight, http.MethodPatch, "/v1/oversight/organizations/not-a-uuid", statusRequest{Status: "revoked"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown organization", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), id, models.StatusVerified).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "organization not found"))
		rec := s.do(domain.RoleOversight, http.MethodPatch, "/v1/oversight/organizations/"+id.String(), statusRequest{Status: "verified"})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}
