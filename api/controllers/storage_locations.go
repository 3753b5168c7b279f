package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaultarc/archive-backend/api/responses"
	"github.com/vaultarc/archive-backend/api/validators"
	"github.com/vaultarc/archive-backend/internal/storageloc"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type createStorageLocationRequest struct {
	UnitID      string  `json:"unit_id" validate:"required,uuid"`
	Room        string  `json:"room" validate:"required"`
	Rack        string  `json:"rack" validate:"required"`
	Compartment string  `json:"compartment" validate:"required"`
	Shelf       *string `json:"shelf"`
}

func StorageLocationCreate(svc storageloc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createStorageLocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unitID, err := uuid.Parse(payload.UnitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit_id"))
			return
		}

		location, err := svc.Create(r.Context(), storageloc.CreateInput{
			UnitID:      unitID,
			Room:        payload.Room,
			Rack:        payload.Rack,
			Compartment: payload.Compartment,
			Shelf:       payload.Shelf,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, storageLocationResponseFromModel(location))
	}
}

func StorageLocationGet(svc storageloc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := validators.ParsePathUUID(chi.URLParam(r, "locationId"), "locationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := svc.Get(r.Context(), locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, storageLocationResponseFromModel(location))
	}
}

func StorageLocationListByUnit(svc storageloc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := validators.ParsePathUUID(chi.URLParam(r, "unitId"), "unitId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locations, err := svc.ListByUnit(r.Context(), unitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]storageLocationResponse, len(locations))
		for i := range locations {
			items[i] = storageLocationResponseFromModel(&locations[i])
		}
		responses.WriteSuccess(w, map[string]any{"storage_locations": items})
	}
}

func StorageLocationDelete(svc storageloc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := validators.ParsePathUUID(chi.URLParam(r, "locationId"), "locationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), locationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": locationID})
	}
}

type storageLocationResponse struct {
	ID          uuid.UUID `json:"id"`
	UnitID      uuid.UUID `json:"unit_id"`
	Room        string    `json:"room"`
	Rack        string    `json:"rack"`
	Compartment string    `json:"compartment"`
	Shelf       *string   `json:"shelf,omitempty"`
	Location    string    `json:"location"`
}

func storageLocationResponseFromModel(m *storageloc.Location) storageLocationResponse {
	return storageLocationResponse{
		ID:          m.ID,
		UnitID:      m.UnitID,
		Room:        m.Room,
		Rack:        m.Rack,
		Compartment: m.Compartment,
		Shelf:       m.Shelf,
		Location:    m.Location,
	}
}
