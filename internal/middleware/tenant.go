package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
	apperrors "github.com/jwalitptl/salon-api/pkg/errors"
)

const (
	HeaderXTenantID  = "X-Tenant-ID"
	HeaderXActorType = "X-Actor-Type"
	HeaderXActorID   = "X-Actor-ID"

	ContextTenantID = "tenant_id"
	ContextActor    = "actor"
)

// Tenant requires a UUID in X-Tenant-ID and stores it on the context.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderXTenantID)
		if raw == "" {
			abort(c, http.StatusBadRequest, apperrors.ErrBadRequest, "missing "+HeaderXTenantID+" header")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			abort(c, http.StatusBadRequest, apperrors.ErrBadRequest, "invalid "+HeaderXTenantID+" header")
			return
		}
		c.Set(ContextTenantID, id)
		c.Next()
	}
}

// TenantID returns the tenant stored by Tenant.
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextTenantID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Actor reads X-Actor-Type (staff or client, staff when absent) and an
// optional X-Actor-ID.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := model.Actor{Type: model.ActorStaff}

		switch t := model.ActorType(c.GetHeader(HeaderXActorType)); t {
		case "":
		case model.ActorStaff, model.ActorClient:
			actor.Type = t
		default:
			abort(c, http.StatusBadRequest, apperrors.ErrBadRequest, "invalid "+HeaderXActorType+" header")
			return
		}

		if raw := c.GetHeader(HeaderXActorID); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				abort(c, http.StatusBadRequest, apperrors.ErrBadRequest, "invalid "+HeaderXActorID+" header")
				return
			}
			actor.ID = &id
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Actor, or a staff actor.
func ActorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{Type: model.ActorStaff}
}
