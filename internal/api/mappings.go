package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/mapping"
)

// MappingHandler maps identifiers through stored tables.
type MappingHandler struct {
	mapper IdentifierMapper
	log    *logrus.Logger
}

// NewMappingHandler creates a MappingHandler.
func NewMappingHandler(mapper IdentifierMapper, log *logrus.Logger) *MappingHandler {
	return &MappingHandler{mapper: mapper, log: log}
}

type mapResponse struct {
	Namespace  string   `json:"namespace"`
	ID         string   `json:"id"`
	DB         string   `json:"db,omitempty"`
	Accessions []string `json:"accessions"`
	Canonical  []string `json:"canonical"`
}

// Map handles GET /api/v1/map/:namespace/*id?db=NAME.
func (h *MappingHandler) Map(c *gin.Context) {
	ns, err := mapping.Lookup(c.Param("namespace"))
	if err != nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	id := trimWildcard(c.Param("id"))
	if id == "" || len(id) > maxIDLength {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid identifier")
		return
	}

	db := c.Query("db")

	accs, err := h.mapper.MapIdentifier(c.Request.Context(), id, ns, db)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"namespace": ns.Name, "id": id}).Error("identifier mapping failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "identifier mapping failed")

		return
	}

	resp := mapResponse{
		Namespace:  ns.Name,
		ID:         id,
		DB:         db,
		Accessions: make([]string, 0, len(accs)),
		Canonical:  make([]string, 0, len(accs)),
	}

	for _, acc := range accs {
		resp.Accessions = append(resp.Accessions, acc)
		resp.Canonical = append(resp.Canonical, ns.CanonicalID(acc))
	}

	c.JSON(http.StatusOK, resp)
}
