package dto

type ResumeUploadResponse struct {
	Success    bool   `json:"success"`
	ResumePath string `json:"resume_path"`
}
