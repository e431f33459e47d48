package route

import (
	"net/http"

	"detectreview/internal/config"
	"detectreview/internal/handler"
	"detectreview/internal/logger"
	"detectreview/internal/repository"
	"detectreview/internal/service/session"
)

// SetupRoutes registers the session command API, the viewer socket, saved
// picture serving and the log endpoints of the host application.
func SetupRoutes(machine handler.Dispatcher, hub handler.ViewerHub, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	command := func(name session.CommandName) http.HandlerFunc {
		return handler.CommandHandler(machine, name, logger)
	}

	// Acquisition
	mux.HandleFunc("POST /api/camera/start", command(session.StartCamera))
	mux.HandleFunc("POST /api/camera/stop", command(session.StopCamera))
	mux.HandleFunc("POST /api/video/start", command(session.StartVideo))
	mux.HandleFunc("POST /api/video/stop", command(session.StopVideo))
	mux.HandleFunc("POST /api/still", command(session.SelectStill))
	mux.HandleFunc("POST /api/still/close", command(session.CloseStill))
	mux.HandleFunc("POST /api/capture", command(session.Capture))

	// Review
	mux.HandleFunc("POST /api/review/open", command(session.OpenReview))
	mux.HandleFunc("POST /api/review/close", command(session.CloseReview))
	mux.HandleFunc("POST /api/review/navigate", command(session.Navigate))
	mux.HandleFunc("POST /api/review/select", command(session.SelectIndex))
	mux.HandleFunc("PUT /api/review/records/{id}", command(session.UpdateNotes))
	mux.HandleFunc("DELETE /api/review/records/{id}", command(session.Delete))

	// State and presentation
	mux.HandleFunc("GET /api/state", handler.StateHandler(machine, logger))
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("GET /api/pictures/view", handler.ViewPictureHandler(cfg))

	registerLogRoutes(mux, logger)
	return mux
}

// SetupStoreRoutes registers the review store endpoints.
func SetupStoreRoutes(repo repository.RecordRepository, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /save_image/", handler.SaveImageHandler(repo, logger))
	mux.HandleFunc("GET /images/", handler.GetImagesHandler(repo, logger))
	mux.HandleFunc("GET /images/{id}", handler.GetImageHandler(repo, logger))
	mux.HandleFunc("PUT /images/{id}", handler.UpdateImageNotesHandler(repo, logger))
	mux.HandleFunc("DELETE /images/{id}", handler.DeleteImageHandler(repo, logger))

	registerLogRoutes(mux, logger)
	return mux
}

func registerLogRoutes(mux *http.ServeMux, logger *logger.Logger) {
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))
}
