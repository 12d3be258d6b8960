package interfaces

import (
	"net/http"

	"applicant-tracker/domain"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	sessionName  = "applicant_session"
	principalKey = "principal"

	keyAdminID           = "admin_id"
	keyAdminUsername     = "admin_username"
	keyCandidateID       = "candidate_id"
	keyCandidateUsername = "candidate_username"
)

// NewSessionStore returns a signed cookie store. secure should be true
// when the server sits behind TLS.
func NewSessionStore(secret string, secure bool) sessions.Store {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// resolvePrincipal reads the session once and stores the caller identity
// on the context. Stale ids (deleted or disabled accounts) are dropped.
func (h *HTTPHandler) resolvePrincipal(c *gin.Context) {
	sess := sessions.Default(c)
	ctx := c.Request.Context()
	var p domain.Principal
	dirty := false

	// a lookup error keeps the session; only a missing account clears it
	if id, ok := sess.Get(keyAdminID).(uint); ok {
		exists, err := h.Auth.AdminExists(ctx, id)
		switch {
		case err != nil:
			h.Log.WithError(err).Warn("session: admin lookup failed")
		case exists:
			p.AdminID = id
			p.AdminUsername, _ = sess.Get(keyAdminUsername).(string)
		default:
			sess.Delete(keyAdminID)
			sess.Delete(keyAdminUsername)
			dirty = true
		}
	}
	if id, ok := sess.Get(keyCandidateID).(string); ok {
		exists, err := h.Auth.CandidateExists(ctx, id)
		switch {
		case err != nil:
			h.Log.WithError(err).Warn("session: candidate lookup failed")
		case exists:
			p.CandidateID = id
			p.CandidateUsername, _ = sess.Get(keyCandidateUsername).(string)
		default:
			sess.Delete(keyCandidateID)
			sess.Delete(keyCandidateUsername)
			dirty = true
		}
	}
	if dirty {
		_ = sess.Save()
	}

	c.Set(principalKey, p)
	c.Next()
}

func principal(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func requireAdmin(c *gin.Context) {
	if !principal(c).IsAdmin() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin authentication required"})
		return
	}
	c.Next()
}

func requireCandidate(c *gin.Context) {
	if !principal(c).IsCandidate() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "candidate authentication required"})
		return
	}
	c.Next()
}
