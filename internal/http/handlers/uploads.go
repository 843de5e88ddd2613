package handlers

import "net/http"

// PresignedUpload hands the caller a signed URL to upload a photo archive
// to. The returned file URL is what the client later submits as zip_url on
// the training request.
func (a *App) PresignedUpload(w http.ResponseWriter, r *http.Request) {
	if a.currentUserID(r) == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Uploads == nil {
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "upload storage is not configured")
		return
	}
	upload, err := a.Uploads.NewArchiveUpload()
	if err != nil {
		a.Logger.Error().Err(err).Msg("handler: presigned upload failed")
		a.error(w, http.StatusBadGateway, "storage_unavailable", "could not create upload url")
		return
	}
	a.json(w, http.StatusOK, upload)
}
