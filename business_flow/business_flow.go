package businessflow

import (
	"context"
	"log"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
)

type contextKey string

const RequestIDKey contextKey = "X-Request-ID"

const identityKey contextKey = "identity"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) clientIP() string {
	if cm == nil {
		return ""
	}
	return cm.IPAddress
}

// Identity is the outcome of a successful session resolution: the branch behind the request and its freshly rotated session.
type Identity struct {
	Branch  *models.Branch
	Session *models.Session
}

func (i *Identity) CompanyID() uuid.UUID {
	return i.Branch.CompanyID
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok && identity != nil && identity.Branch != nil
}

// WithRequestID returns a copy of ctx carrying the request id used for audit entries
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ToBranchDTO converts a branch model for API responses
func ToBranchDTO(branch models.Branch) dto.BranchDTO {
	return dto.BranchDTO{
		ID:        branch.ID.String(),
		Username:  branch.Username,
		Name:      branch.Name,
		Kind:      branch.Kind.String(),
		Status:    branch.IsActive(),
		AccountID: branch.AccountID.String(),
		CompanyID: branch.CompanyID.String(),
		CreatedAt: branch.CreatedAt,
		UpdatedAt: branch.UpdatedAt,
		DeletedAt: branch.DeletedAt,
	}
}

// ToCompanyDTO converts a company model for API responses
func ToCompanyDTO(company models.Company) dto.CompanyDTO {
	return dto.CompanyDTO{
		ID:           company.ID.String(),
		Email:        company.Email,
		BusinessName: company.BusinessName,
		Mission:      company.Mission,
		Vision:       company.Vision,
		Description:  company.Description,
		Status:       company.IsActive(),
		CreatedAt:    company.CreatedAt,
		UpdatedAt:    company.UpdatedAt,
		DeletedAt:    company.DeletedAt,
	}
}

// auditEntry describes one audit log line
type auditEntry struct {
	action      string
	branchID    *uuid.UUID
	companyID   *uuid.UUID
	description string
	err         error
}

// recordAudit stores an audit line. Failures are logged and swallowed so auditing never breaks a request.
func recordAudit(ctx context.Context, repo repository.AuditLogRepository, metadata *ClientMetadata, entry auditEntry) {
	if repo == nil {
		return
	}

	audit := &models.AuditLog{
		BranchID:    entry.branchID,
		CompanyID:   entry.companyID,
		Action:      entry.action,
		Description: utils.NonEmptyPtr(entry.description),
		Success:     utils.ToPtr(entry.err == nil),
		CreatedAt:   utils.UTCNow(),
	}
	if entry.err != nil {
		audit.ErrorMessage = utils.ToPtr(entry.err.Error())
	}
	if metadata != nil {
		audit.IPAddress = utils.NonEmptyPtr(metadata.IPAddress)
		audit.UserAgent = utils.NonEmptyPtr(metadata.UserAgent)
		audit.RequestID = utils.NonEmptyPtr(metadata.RequestID)
	}
	if audit.RequestID == nil {
		if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
			audit.RequestID = utils.NonEmptyPtr(requestID)
		}
	}

	if err := repo.Save(ctx, audit); err != nil {
		log.Printf("audit: failed to record %s: %v", entry.action, err)
	}
}
