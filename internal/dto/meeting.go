package dto

// MeetingListQuery mirrors the meeting list filters. Dates are YYYY-MM-DD.
type MeetingListQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=PLANNED PREPARING ON_GOING FINISHED"`
	From   string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// ExportQuery selects the audit export encoding.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
}
