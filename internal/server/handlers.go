package server

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/session"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type scoutRequest struct {
	URL string `json:"url"`
}

type analyzeRequest struct {
	Author            string `json:"author"`
	Content           string `json:"content"`
	VisualDescription string `json:"visualDescription"`
	ImageBase64       string `json:"imageBase64"`
	ImageMIMEType     string `json:"imageMimeType"`
	DeepResearch      bool   `json:"deepResearch"`
}

type segmentsRequest struct {
	Region       string `json:"region"`
	DeepResearch bool   `json:"deepResearch"`
}

type chronopostingRequest struct {
	Topic  string `json:"topic"`
	Region string `json:"region"`
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

type selectProfileRequest struct {
	ID string `json:"id"`
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, apperrors.NewValidationError("cuerpo de la solicitud inválido", "body", err.Error()))
		return false
	}
	return true
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := s.sessions.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "state": sess.Controller.Snapshot()})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.sessions.Logout(currentSession(c).Token); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Controller.Snapshot())
}

func (s *Server) handleMode(c *gin.Context) {
	var req modeRequest
	if !bindJSON(c, &req) {
		return
	}
	mode, ok := domain.ParseMode(req.Mode)
	if !ok {
		respondError(c, apperrors.NewValidationError("modo desconocido", "mode", req.Mode))
		return
	}
	state, err := currentSession(c).Controller.SelectMode(mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleDismissBanner(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Controller.DismissBanner())
}

func (s *Server) handleScout(c *gin.Context) {
	var req scoutRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := currentSession(c).Controller.Scout(req.URL)
	respond(c, result, err)
}

func (s *Server) handleVision(c *gin.Context) {
	data, mimeType, err := readUpload(c, "image")
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := currentSession(c).Controller.ExtractScreenshot(data, mimeType)
	respond(c, result, err)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	image, mimeType, err := decodeImage(req.ImageBase64, req.ImageMIMEType)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := currentSession(c).Controller.Analyze(session.AnalyzeRequest{
		Author:            req.Author,
		Content:           req.Content,
		VisualDescription: req.VisualDescription,
		Image:             image,
		ImageMIMEType:     mimeType,
		DeepResearch:      req.DeepResearch,
	})
	respond(c, result, err)
}

func (s *Server) handleSegments(c *gin.Context) {
	var req segmentsRequest
	if !bindJSON(c, &req) {
		return
	}
	segments, err := currentSession(c).Controller.Segment(req.Region, req.DeepResearch)
	respond(c, gin.H{"segments": segments}, err)
}

func (s *Server) handleCampaign(c *gin.Context) {
	campaign, err := currentSession(c).Controller.GenerateCampaign(c.Param("id"))
	respond(c, campaign, err)
}

func (s *Server) handleAllCampaigns(c *gin.Context) {
	generated, err := currentSession(c).Controller.GenerateAllCampaigns()
	respond(c, gin.H{"generated": generated}, err)
}

func (s *Server) handleImage(c *gin.Context) {
	url, err := currentSession(c).Controller.GenerateImage(c.Param("id"))
	respond(c, gin.H{"url": url}, err)
}

func (s *Server) handleAudio(c *gin.Context) {
	url, err := currentSession(c).Controller.GenerateAudio(c.Param("id"))
	respond(c, gin.H{"url": url}, err)
}

func (s *Server) handleChronoposting(c *gin.Context) {
	var req chronopostingRequest
	if !bindJSON(c, &req) {
		return
	}
	items, err := currentSession(c).Controller.Chronoposting(req.Topic, req.Region)
	respond(c, gin.H{"schedule": items}, err)
}

func (s *Server) handleNetwork(c *gin.Context) {
	data, _, err := readUpload(c, "file")
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := currentSession(c).Controller.AnalyzeNetwork(data)
	respond(c, report, err)
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := currentSession(c).Controller.Translate(req.Text, req.TargetLanguage)
	respond(c, gin.H{"result": out}, err)
}

func (s *Server) handleListProfiles(c *gin.Context) {
	profiles, active, err := currentSession(c).Controller.Profiles()
	respond(c, gin.H{"profiles": profiles, "activeProfileId": active}, err)
}

func (s *Server) handleCreateProfile(c *gin.Context) {
	var req domain.CandidateProfile
	if !bindJSON(c, &req) {
		return
	}
	created, err := currentSession(c).Controller.CreateProfile(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleSelectProfile(c *gin.Context) {
	var req selectProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	state, err := currentSession(c).Controller.SelectProfile(req.ID)
	respond(c, state, err)
}

func respond(c *gin.Context, body any, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// readUpload reads a multipart file field, bounded by MaxUploadBytes.
func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.AIInputLimits.MaxUploadBytes)
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", apperrors.NewValidationError("adjunta un archivo", field, err.Error())
	}
	if header.Size > constants.AIInputLimits.MaxUploadBytes {
		return nil, "", apperrors.NewValidationError("el archivo es demasiado grande", field, header.Filename)
	}
	data, err := readFileHeader(header)
	if err != nil {
		return nil, "", apperrors.NewValidationError("no se pudo leer el archivo", field, err.Error())
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func readFileHeader(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// decodeImage accepts raw base64 or a data URL. An empty input means no
// image.
func decodeImage(encoded, mimeType string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", nil
	}
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", apperrors.NewValidationError("imagen inválida", "imageBase64", "data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(meta, ";base64")
		}
		encoded = payload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", apperrors.NewValidationError("imagen inválida", "imageBase64", err.Error())
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
