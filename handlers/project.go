package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/database"
	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
)

type ProjectHandler struct {
	Repo    repository.ProjectRepositoryInterface
	StatsDB *sql.DB
	Logger  zerolog.Logger
}

func (ph *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: name")
		return
	}

	now := time.Now().Unix()
	project := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ph.Repo.Create(project); err != nil {
		ph.Logger.Error().Err(err).Str("name", req.Name).Msg("failed to create project")
		writeError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (ph *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := ph.Repo.ListAll()
	if err != nil {
		ph.Logger.Error().Err(err).Msg("failed to list projects")
		writeError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (ph *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, err := ph.Repo.GetByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		ph.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to fetch project")
		writeError(w, http.StatusInternalServerError, "Failed to fetch project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (ph *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, err := ph.Repo.GetByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch project")
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "Project name cannot be empty")
			return
		}
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = req.Description
	}
	project.UpdatedAt = time.Now().Unix()

	if err := ph.Repo.Update(project); err != nil {
		ph.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to update project")
		writeError(w, http.StatusInternalServerError, "Failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (ph *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	if _, err := ph.Repo.GetByID(projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch project")
		return
	}

	if err := ph.Repo.Delete(projectID); err != nil {
		ph.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to delete project")
		writeError(w, http.StatusInternalServerError, "Failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProjectStats returns aggregate counts over the project's sessions,
// batches, and photos
func (ph *ProjectHandler) GetProjectStats(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	if _, err := ph.Repo.GetByID(projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch project")
		return
	}

	stats, err := database.GetProjectStats(ph.StatsDB, projectID)
	if err != nil {
		ph.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to compute project stats")
		writeError(w, http.StatusInternalServerError, "Failed to compute project stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
