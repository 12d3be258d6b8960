package interfaces

import (
	"applicant-tracker/domain"

	"github.com/gin-gonic/gin"
)

// publicCandidateJSON hides the score; only passed/failed is exposed.
func publicCandidateJSON(c *domain.Candidate) gin.H {
	var analysisStatus interface{}
	if c.IsAnalyzed() {
		if c.Passed() {
			analysisStatus = "passed"
		} else {
			analysisStatus = "failed"
		}
	}
	return gin.H{
		"id":             c.ID,
		"firstName":      c.FirstName,
		"lastName":       c.LastName,
		"email":          c.Email,
		"status":         c.Status,
		"analysisStatus": analysisStatus,
		"submittedAt":    c.SubmittedAt,
		"analyzedAt":     c.AnalyzedAt,
	}
}

func candidateSummaryJSON(c *domain.Candidate) gin.H {
	return gin.H{
		"id":          c.ID,
		"firstName":   c.FirstName,
		"lastName":    c.LastName,
		"email":       c.Email,
		"status":      c.Status,
		"score":       c.Score,
		"submittedAt": c.SubmittedAt,
		"analyzedAt":  c.AnalyzedAt,
	}
}

func candidateDetailJSON(c *domain.Candidate) gin.H {
	out := candidateSummaryJSON(c)
	out["cvText"] = c.CVText
	out["cvFileName"] = c.CVFileName
	out["analysis"] = c.AnalysisResult
	out["notificationSent"] = c.NotificationSent
	out["isActive"] = c.IsActive
	if c.JobDescription != nil {
		out["job"] = jobJSON(c.JobDescription)
	} else {
		out["job"] = nil
	}
	return out
}

func candidateListJSON(list []domain.Candidate, view func(*domain.Candidate) gin.H) gin.H {
	items := make([]gin.H, 0, len(list))
	for i := range list {
		items = append(items, view(&list[i]))
	}
	return gin.H{"total": len(items), "candidates": items}
}

func pendingJSON(c *domain.Candidate) gin.H {
	return gin.H{
		"id":          c.ID,
		"firstName":   c.FirstName,
		"lastName":    c.LastName,
		"email":       c.Email,
		"submittedAt": c.SubmittedAt,
	}
}

func jobJSON(j *domain.JobDescription) gin.H {
	return gin.H{
		"id":          j.ID,
		"title":       j.Title,
		"description": j.Description,
		"isActive":    j.IsActive,
		"createdAt":   j.CreatedAt,
	}
}

func jobsJSON(jobs []domain.JobDescription) []gin.H {
	out := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobJSON(&jobs[i]))
	}
	return out
}

func notificationsJSON(list []domain.Notification) []gin.H {
	out := make([]gin.H, 0, len(list))
	for _, n := range list {
		out = append(out, gin.H{
			"id":        n.ID,
			"title":     n.Title,
			"message":   n.Message,
			"score":     n.Score,
			"isRead":    n.IsRead,
			"createdAt": n.CreatedAt,
		})
	}
	return out
}
