package controller

import (
	pkghttp "github.com/JonnyShabli/registry-mailer/pkg/http"
	"github.com/go-chi/chi/v5"
)

func WithApiHandler(api HandlerInterface) pkghttp.RouterOption {
	return func(r chi.Router) {
		r.Post("/start-extraction", api.StartExtraction)
		r.Get("/extraction-status/{task_id}", api.ExtractionStatus)
		r.Get("/download-file/{filename}", api.DownloadFile)
		r.Get("/file-history", api.FileHistory)
		r.Post("/send-emails", api.SendEmails)
		r.Get("/send-emails-status/{task_id}", api.SendEmailsStatus)
	}
}
