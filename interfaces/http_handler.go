package interfaces

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"applicant-tracker/application"
	"applicant-tracker/domain"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type HTTPHandler struct {
	Candidates *application.CandidateService
	Jobs       *application.JobService
	Auth       *application.AuthService
	Notifier   *application.Notifier
	Log        *logrus.Logger
}

func NewHTTPHandler(router *gin.Engine, h *HTTPHandler, store sessions.Store) {
	api := router.Group("/api", sessions.Sessions(sessionName, store), h.resolvePrincipal)

	api.GET("/health", h.Health)
	api.POST("/submit-candidate", h.SubmitCandidate)
	api.GET("/candidate/:id", h.GetCandidate)
	api.POST("/check-status", h.CheckStatus)
	api.POST("/analyze-candidate", h.AnalyzeText)
	api.GET("/jobs", h.ListJobs)
	api.GET("/jobs/active", h.ActiveJob)

	api.POST("/register", h.Register)
	api.POST("/login", h.CandidateLogin)
	api.POST("/logout", h.CandidateLogout)

	me := api.Group("/me", requireCandidate)
	me.GET("", h.Me)
	me.POST("/job", h.SelectJob)
	me.POST("/cv", h.UploadCV)
	me.GET("/notifications", h.MyNotifications)
	me.POST("/notifications/:nid/read", h.MarkNotificationRead)

	api.GET("/cv/:id", h.serveCV("inline"))
	api.GET("/cv/:id/download", h.serveCV("attachment"))

	api.POST("/admin/login", h.AdminLogin)
	api.POST("/admin/logout", h.AdminLogout)

	admin := api.Group("/admin", requireAdmin)
	admin.GET("/dashboard", h.Dashboard)
	admin.GET("/candidates", h.ListCandidates)
	admin.GET("/candidates-pending", h.ListPending)
	admin.GET("/candidate/:id", h.CandidateDetail)
	admin.POST("/candidate/:id/analyze", h.AnalyzeCandidate)
	admin.DELETE("/candidate/:id", h.DeleteCandidate)
	admin.GET("/jobs", h.ListAllJobs)
	admin.POST("/jobs", h.CreateJob)
	admin.PATCH("/jobs/:id", h.UpdateJob)
}

// respondError maps domain errors to status codes. Unknown errors are
// logged and answered with a generic body.
func (h *HTTPHandler) respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var aerr *domain.AnalysisError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "errors": verr.Messages})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &aerr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI analysis failed: " + aerr.Message, "kind": aerr.Kind})
	default:
		h.Log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON request"})
		return false
	}
	return true
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "applicant-tracker"})
}

func (h *HTTPHandler) SubmitCandidate(c *gin.Context) {
	var req application.SubmitInput
	if !bindJSON(c, &req) {
		return
	}
	cand, err := h.Candidates.Submit(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          cand.ID,
		"firstName":   cand.FirstName,
		"lastName":    cand.LastName,
		"email":       cand.Email,
		"status":      cand.Status,
		"message":     "Application submitted successfully",
		"submittedAt": cand.SubmittedAt,
	})
}

func (h *HTTPHandler) GetCandidate(c *gin.Context) {
	cand, err := h.Candidates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicCandidateJSON(cand))
}

func (h *HTTPHandler) CheckStatus(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	cand, err := h.Candidates.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicCandidateJSON(cand))
}

func (h *HTTPHandler) AnalyzeText(c *gin.Context) {
	var req application.AnalyzeTextInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.Candidates.AnalyzeText(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Access-Control-Allow-Origin", "*")
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) ListJobs(c *gin.Context) {
	jobs, err := h.Jobs.ListActive(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobsJSON(jobs))
}

func (h *HTTPHandler) ActiveJob(c *gin.Context) {
	job, err := h.Jobs.Active(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobJSON(job))
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *HTTPHandler) Register(c *gin.Context) {
	var req application.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	cand, err := h.Candidates.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.loginCandidate(c, cand); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Account created, you are logged in", "candidate": publicCandidateJSON(cand)})
}

func (h *HTTPHandler) CandidateLogin(c *gin.Context) {
	var req credentials
	if !bindJSON(c, &req) {
		return
	}
	cand, err := h.Auth.AuthenticateCandidate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.loginCandidate(c, cand); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Welcome!", "candidate": publicCandidateJSON(cand)})
}

func (h *HTTPHandler) loginCandidate(c *gin.Context, cand *domain.Candidate) error {
	sess := sessions.Default(c)
	sess.Set(keyCandidateID, cand.ID)
	if cand.Username != nil {
		sess.Set(keyCandidateUsername, *cand.Username)
	}
	return sess.Save()
}

func (h *HTTPHandler) CandidateLogout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Delete(keyCandidateID)
	sess.Delete(keyCandidateUsername)
	if err := sess.Save(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *HTTPHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)
	cand, err := h.Candidates.Get(ctx, p.CandidateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	notifications, err := h.Notifier.ListForCandidate(ctx, cand.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	unread, err := h.Notifier.UnreadCount(ctx, cand.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	view := publicCandidateJSON(cand)
	view["username"] = cand.Username
	view["cvFileName"] = cand.CVFileName
	var job interface{}
	if cand.JobDescription != nil {
		job = jobJSON(cand.JobDescription)
	}
	c.JSON(http.StatusOK, gin.H{
		"candidate":     view,
		"job":           job,
		"notifications": notificationsJSON(notifications),
		"unread":        unread,
	})
}

func (h *HTTPHandler) SelectJob(c *gin.Context) {
	var req struct {
		JobID uint `json:"jobId"`
	}
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Candidates.SelectJob(c.Request.Context(), principal(c).CandidateID, req.JobID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job selected", "job": jobJSON(job)})
}

func (h *HTTPHandler) UploadCV(c *gin.Context) {
	header, err := c.FormFile("cvFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cvFile is required"})
		return
	}
	if header.Size > application.MaxCVUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the file must not exceed 5MB"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open CV file"})
		return
	}
	defer f.Close()

	cand, err := h.Candidates.UploadCV(c.Request.Context(), principal(c).CandidateID, header.Filename, f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "CV uploaded successfully, your application will be analysed",
		"candidate": publicCandidateJSON(cand),
	})
}

func (h *HTTPHandler) MyNotifications(c *gin.Context) {
	list, err := h.Notifier.ListForCandidate(c.Request.Context(), principal(c).CandidateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notificationsJSON(list))
}

func (h *HTTPHandler) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("nid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.Notifier.MarkRead(c.Request.Context(), principal(c).CandidateID, uint(id)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *HTTPHandler) serveCV(disposition string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, name, err := h.Candidates.OpenCV(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		defer rc.Close()

		c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, name))
		c.DataFromReader(http.StatusOK, -1, cvContentType(name), rc, nil)
	}
}

func cvContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (h *HTTPHandler) AdminLogin(c *gin.Context) {
	var req credentials
	if !bindJSON(c, &req) {
		return
	}
	admin, err := h.Auth.AuthenticateAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(keyAdminID, admin.ID)
	sess.Set(keyAdminUsername, admin.Username)
	if err := sess.Save(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "username": admin.Username})
}

func (h *HTTPHandler) AdminLogout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Delete(keyAdminID)
	sess.Delete(keyAdminUsername)
	if err := sess.Save(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *HTTPHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.Candidates.Stats(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	latest, err := h.Candidates.Latest(ctx, 10)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":     stats,
		"threshold": h.Notifier.Threshold(),
		"latest":    candidateListJSON(latest, candidateSummaryJSON)["candidates"],
		"admin":     principal(c).AdminUsername,
	})
}

func (h *HTTPHandler) ListCandidates(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		list []domain.Candidate
		err  error
	)
	if c.Query("status") == string(domain.StatusAnalyzed) {
		list, err = h.Candidates.ListAnalyzed(ctx)
	} else {
		list, err = h.Candidates.List(ctx)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidateListJSON(list, candidateSummaryJSON))
}

func (h *HTTPHandler) ListPending(c *gin.Context) {
	list, err := h.Candidates.ListPending(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidateListJSON(list, pendingJSON))
}

func (h *HTTPHandler) CandidateDetail(c *gin.Context) {
	cand, err := h.Candidates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidateDetailJSON(cand))
}

func (h *HTTPHandler) AnalyzeCandidate(c *gin.Context) {
	var req struct {
		JobDescription string `json:"jobDescription"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON request"})
		return
	}

	cand, err := h.Candidates.Analyze(c.Request.Context(), c.Param("id"), req.JobDescription)
	if err != nil {
		h.Log.WithError(err).WithField("candidate_id", c.Param("id")).Warn("candidate analysis failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         cand.ID,
		"firstName":  cand.FirstName,
		"lastName":   cand.LastName,
		"email":      cand.Email,
		"status":     cand.Status,
		"score":      cand.Score,
		"analysis":   cand.AnalysisResult,
		"analyzedAt": cand.AnalyzedAt,
		"message":    "Analysis completed",
	})
}

func (h *HTTPHandler) DeleteCandidate(c *gin.Context) {
	if err := h.Candidates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Candidate deleted"})
}

func (h *HTTPHandler) ListAllJobs(c *gin.Context) {
	jobs, err := h.Jobs.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobsJSON(jobs))
}

func (h *HTTPHandler) CreateJob(c *gin.Context) {
	var req application.JobInput
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Jobs.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jobJSON(job))
}

func (h *HTTPHandler) UpdateJob(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isActive is required"})
		return
	}
	job, err := h.Jobs.SetActive(c.Request.Context(), uint(id), *req.IsActive)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobJSON(job))
}
