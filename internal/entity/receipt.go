package entity

// Receipt is a stored expense receipt as returned by the backend.
type Receipt struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	FilePath   string    `json:"file_path"`
	Category   string    `json:"category"`
	Amount     Money     `json:"amount"`
	Date       Date      `json:"date"`
	UploadedAt Timestamp `json:"uploaded_at"`
}
