package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/util"
)

// ListWords returns the words starting with ?search and how many posts
// contain each
// GET /api/v1/words?search=
func (h *Handlers) ListWords(c *gin.Context) {
	prefix := strings.ToLower(strings.TrimSpace(c.Query("search")))

	db := h.db.WithContext(c.Request.Context()).
		Table("words").
		Select("words.text AS text, COUNT(post_words.post_id) AS occurrences").
		Joins("LEFT JOIN post_words ON post_words.word_text = words.text")
	if prefix != "" {
		escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
		db = db.Where(`words.text LIKE ? ESCAPE '\'`, escaped+"%")
	}

	out := []dto.WordResponse{}
	if err := db.Group("words.text").Order("words.text").Limit(limitParam(c)).Scan(&out).Error; err != nil {
		util.RespondInternalError(c, "failed to list words")
		return
	}
	for i := range out {
		if out[i].Occurrences < 1 {
			out[i].Occurrences = 1
		}
	}
	c.JSON(http.StatusOK, out)
}
