package catalog

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/service-checkout/internal/common"
)

// Handler exposes the public service listing.
type Handler struct {
	catalog *Catalog
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalog *Catalog
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{catalog: cfg.Catalog}
}

// CategoryView groups purchasable options under their category.
type CategoryView struct {
	Category string       `json:"category"`
	Label    string       `json:"label"`
	Options  []OptionView `json:"options"`
}

// OptionView is a single purchasable option.
type OptionView struct {
	SubOption string          `json:"subOption"`
	Label     string          `json:"label"`
	Price     decimal.Decimal `json:"price"`
}

// Services handles GET /api/services.
func (h *Handler) Services(w http.ResponseWriter, _ *http.Request) {
	if h == nil || h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", "")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": Group(h.catalog.Entries())})
}

// Group folds entries into categories, keeping first-seen order.
func Group(entries []Entry) []CategoryView {
	out := []CategoryView{}
	index := map[string]int{}
	for _, e := range entries {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryView{Category: e.Category, Label: e.CategoryLabel})
		}
		out[i].Options = append(out[i].Options, OptionView{SubOption: e.SubOption, Label: e.Label, Price: e.Price})
	}
	return out
}
