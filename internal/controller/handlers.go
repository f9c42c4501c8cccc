package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonnyShabli/registry-mailer/internal/Service"
	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/go-chi/chi/v5"
)

const (
	multipartMemory = 8 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type HandlerInterface interface {
	StartExtraction(w http.ResponseWriter, r *http.Request)
	ExtractionStatus(w http.ResponseWriter, r *http.Request)
	DownloadFile(w http.ResponseWriter, r *http.Request)
	FileHistory(w http.ResponseWriter, r *http.Request)
	SendEmails(w http.ResponseWriter, r *http.Request)
	SendEmailsStatus(w http.ResponseWriter, r *http.Request)
}

type HandlerObj struct {
	Service Service.ServiceInterface
	Logger  logster.Logger
}

func NewHandlers(service Service.ServiceInterface, logger logster.Logger) *HandlerObj {
	return &HandlerObj{
		Service: service,
		Logger:  logger.WithField("Layer", "Handlers"),
	}
}

func (h *HandlerObj) StartExtraction(w http.ResponseWriter, r *http.Request) {
	region, err := ParseRegion(r.FormValue("member_region"))
	if err != nil {
		ErrorResponse(w, h.Logger, err)
		return
	}

	id, err := h.Service.StartExtraction(r.Context(), models.ExtractionRequest{
		Region:     region,
		RegionName: strings.TrimSpace(r.FormValue("region_name")),
	})
	if err != nil {
		ErrorResponse(w, h.Logger, err)
		return
	}
	h.Logger.Infof("extraction task %s accepted", id)
	SuccessDataResponse(w, h.Logger, models.TaskIdResponse{TaskId: id})
}

func (h *HandlerObj) ExtractionStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, models.KindExtraction)
}

func (h *HandlerObj) SendEmailsStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, models.KindSendEmails)
}

func (h *HandlerObj) status(w http.ResponseWriter, r *http.Request, kind string) {
	taskId := chi.URLParam(r, "task_id")
	if taskId == "" {
		ErrorResponse(w, h.Logger, models.NewInputError("fail to get task_id", nil))
		return
	}

	status, err := h.Service.GetStatus(r.Context(), kind, taskId)
	if err != nil {
		ErrorResponse(w, h.Logger, fmt.Errorf("task %s: %w", taskId, err))
		return
	}
	SuccessDataResponse(w, h.Logger, status)
}

func (h *HandlerObj) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "filename")
	if fileName == "" {
		ErrorResponse(w, h.Logger, models.NewInputError("filename not specified", nil))
		return
	}

	path, err := h.Service.ResolveFile(r.Context(), fileName)
	if err != nil {
		ErrorResponse(w, h.Logger, fmt.Errorf("%s: %w", fileName, err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	http.ServeFile(w, r, path)
}

func (h *HandlerObj) FileHistory(w http.ResponseWriter, r *http.Request) {
	files, err := h.Service.FileHistory(r.Context())
	if err != nil {
		ErrorResponse(w, h.Logger, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	SuccessDataResponse(w, h.Logger, models.FileHistoryResponse{Files: files})
}

func (h *HandlerObj) SendEmails(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		ErrorResponse(w, h.Logger, models.NewInputError("expected a multipart form", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	req, err := parseSendForm(r)
	if err != nil {
		ErrorResponse(w, h.Logger, err)
		return
	}

	file, header, err := r.FormFile("excel_file")
	if err != nil {
		ErrorResponse(w, h.Logger, models.NewInputError("No Excel file provided.", nil))
		return
	}
	defer file.Close()

	id, err := h.Service.SendEmails(r.Context(), req, file, header.Filename)
	if err != nil {
		ErrorResponse(w, h.Logger, err)
		return
	}
	h.Logger.Infof("send task %s accepted", id)
	SuccessDataResponse(w, h.Logger, models.TaskIdResponse{TaskId: id})
}

func parseSendForm(r *http.Request) (models.SendRequest, error) {
	port, err := strconv.Atoi(strings.TrimSpace(r.FormValue("smtp_port")))
	if err != nil {
		return models.SendRequest{}, models.NewInputError("smtp_port must be an integer", nil)
	}

	body := r.FormValue("body_html")
	if body == "" {
		body = r.FormValue("body")
	}

	return models.SendRequest{
		SMTP: models.SMTPParams{
			Host:     strings.TrimSpace(r.FormValue("smtp_host")),
			Port:     port,
			Username: strings.TrimSpace(r.FormValue("smtp_user")),
			Password: r.FormValue("smtp_pass"),
			Secure:   strings.ToLower(strings.TrimSpace(r.FormValue("smtp_secure"))),
		},
		Subject:  r.FormValue("subject"),
		BodyHTML: body,
	}, nil
}

// ParseRegion reads the region form value. Empty, "-1" and "all" select
// every region and yield nil.
func ParseRegion(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-1" || strings.EqualFold(raw, "all") {
		return nil, nil
	}
	region, err := strconv.Atoi(raw)
	if err != nil {
		return nil, models.NewInputError("member_region must be an integer, -1 or all", nil)
	}
	return &region, nil
}
