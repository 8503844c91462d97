package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"voicebook/models"
	"voicebook/services/call"
	"voicebook/services/dialogue"
	"voicebook/services/speech"
	"voicebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Transcriber is satisfied by *speech.Transcriber.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, current models.Language) (dialogue.Utterance, error)
}

type CallHandler struct {
	Calls       *call.Manager
	Transcriber Transcriber
}

func NewCallHandler(calls *call.Manager, stt Transcriber) *CallHandler {
	return &CallHandler{Calls: calls, Transcriber: stt}
}

// StartCallHandler handles POST /api/calls.
func (h *CallHandler) StartCallHandler(c *gin.Context) {
	var opts call.StartOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
			return
		}
	}
	if opts.Language != "" {
		lang, ok := models.ParseLanguage(string(opts.Language))
		if !ok {
			utils.JSONError(c, http.StatusBadRequest, "unsupported language", string(opts.Language))
			return
		}
		opts.Language = lang
	}

	session, reply, err := h.Calls.Start(c.Request.Context(), opts)
	if err != nil {
		writeDialogueError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"callId": session.ID, "reply": reply})
}

// CallTurnHandler handles POST /api/calls/:id/turns with a transcribed utterance.
func (h *CallHandler) CallTurnHandler(c *gin.Context) {
	var u dialogue.Utterance
	if err := c.ShouldBindJSON(&u); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if strings.TrimSpace(u.Text) == "" {
		utils.JSONError(c, http.StatusBadRequest, "text is required", "")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	reply, err := h.Calls.Turn(ctx, c.Param("id"), u)
	if err != nil {
		writeDialogueError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// CallAudioHandler handles POST /api/calls/:id/audio: a multipart WAV upload
// is transcribed and fed to the dialogue as one turn.
func (h *CallHandler) CallAudioHandler(c *gin.Context) {
	logger := getLogger(c)
	if h.Transcriber == nil {
		utils.JSONError(c, http.StatusNotImplemented, "speech recognition is not configured", "")
		return
	}
	session, err := h.Calls.Get(c.Param("id"))
	if err != nil {
		writeDialogueError(c, err)
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "audio file is required", err.Error())
		return
	}
	if fileHeader.Size > speech.MaxFileSize {
		utils.JSONError(c, http.StatusRequestEntityTooLarge, "audio file too large", "max 5MB")
		return
	}
	if strings.ToLower(filepath.Ext(fileHeader.Filename)) != ".wav" {
		utils.JSONError(c, http.StatusBadRequest, "only .wav files are allowed", fileHeader.Filename)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to open uploaded file", err.Error())
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(io.LimitReader(file, speech.MaxFileSize+1))
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to read uploaded file", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	u, err := h.Transcriber.Transcribe(ctx, audio, session.Machine().Language())
	switch {
	case errors.Is(err, speech.ErrInvalidAudio):
		utils.JSONError(c, http.StatusBadRequest, "invalid audio", err.Error())
		return
	case errors.Is(err, speech.ErrNoSpeech):
		utils.JSONError(c, http.StatusUnprocessableEntity, "no speech recognized", "")
		return
	case err != nil:
		utils.JSONError(c, http.StatusServiceUnavailable, "speech recognition unavailable", err.Error())
		return
	}
	logger.Debug("Transcribed call audio", zap.String("callId", session.ID), zap.String("language", string(u.LanguageHint)))

	reply, err := h.Calls.Turn(ctx, session.ID, u)
	if err != nil {
		writeDialogueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": u, "reply": reply})
}

// CallSnapshotHandler handles GET /api/calls/:id.
func (h *CallHandler) CallSnapshotHandler(c *gin.Context) {
	snap, err := h.Calls.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDialogueError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// EndCallHandler handles DELETE /api/calls/:id.
func (h *CallHandler) EndCallHandler(c *gin.Context) {
	snap, err := h.Calls.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDialogueError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func writeDialogueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, call.ErrCallNotFound):
		utils.JSONError(c, http.StatusNotFound, "call not found", c.Param("id"))
	case errors.Is(err, dialogue.ErrAgentSpeaking):
		utils.JSONError(c, http.StatusLocked, "agent is speaking", err.Error())
	case errors.Is(err, dialogue.ErrTurnInProgress):
		utils.JSONError(c, http.StatusConflict, "previous turn still in progress", err.Error())
	case errors.Is(err, dialogue.ErrNotAccepting):
		utils.JSONError(c, http.StatusConflict, "call is not accepting input", err.Error())
	case errors.Is(err, dialogue.ErrTransportDisconnected):
		utils.JSONError(c, http.StatusGone, "call disconnected", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "unexpected error", err.Error())
	}
}
