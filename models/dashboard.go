package models

type DashboardStats struct {
	UsersByRole          map[UserRole]int          `json:"users_by_role"`
	TeamsTotal           int                       `json:"teams_total"`
	ApplicationsByStatus map[ApplicationStatus]int `json:"applications_by_status"`
	TotalSlots           int                       `json:"total_slots"`
	FilledSlots          int                       `json:"filled_slots"`
}
