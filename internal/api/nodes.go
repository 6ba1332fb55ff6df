package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
)

// maxIDLength bounds path parameter ids.
const maxIDLength = 2048

// NodeHandler serves committed nodes.
type NodeHandler struct {
	nodes NodeReader
	log   *logrus.Logger
}

// NewNodeHandler creates a NodeHandler.
func NewNodeHandler(nodes NodeReader, log *logrus.Logger) *NodeHandler {
	return &NodeHandler{nodes: nodes, log: log}
}

// Get handles GET /api/v1/nodes/*id. Ids are full URIs, so the route uses a
// catch-all parameter and the leading slash is trimmed.
func (h *NodeHandler) Get(c *gin.Context) {
	id := trimWildcard(c.Param("id"))
	if id == "" || len(id) > maxIDLength {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid node id")
		return
	}

	n, err := h.nodes.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("id", id).Error("node lookup failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "node lookup failed")

		return
	}

	if n == nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "node not found")
		return
	}

	c.JSON(http.StatusOK, graph.Record(n))
}

func trimWildcard(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}

	return p
}
