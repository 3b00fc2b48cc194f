package handlers

import (
	"errors"
	"net/http"

	resumesvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/resumes"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/dto"
	httperrors "github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/errors"
)

const maxResumeUpload = 12 << 20

type ResumeHandler struct {
	resumes *resumesvc.Service
}

func NewResumeHandler(resumes *resumesvc.Service) *ResumeHandler {
	return &ResumeHandler{resumes: resumes}
}

func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.resumes == nil {
		writeInternal(w, "RESUME_SERVICE_UNAVAILABLE", "resume service is unavailable")
		return
	}

	if err := r.ParseMultipartForm(maxResumeUpload); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "resume file is required")
		return
	}
	defer file.Close()

	path, err := h.resumes.Upload(
		r.Context(),
		r.FormValue("email"),
		header.Filename,
		header.Size,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		if errors.Is(err, resumesvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid resume upload")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to store resume")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ResumeUploadResponse{
		Success:    true,
		ResumePath: path,
	})
}
