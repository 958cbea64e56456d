package apicrawler

import (
	"net/http"

	"github.com/v0xg/autoqa/internal/model"
)

var (
	commonResources = []string{"users", "products", "orders", "posts", "items"}
	authActions     = []string{"login", "register", "logout", "refresh"}
)

// heuristicEndpoints guesses the usual CRUD routes for common resources
// plus the usual auth routes, so test generation always has something
// to work with.
func heuristicEndpoints() []model.APIEndpoint {
	idParam := []model.Parameter{{Name: "id", In: "path", Required: true}}

	var out []model.APIEndpoint
	for _, r := range commonResources {
		collection := "/api/" + r
		item := collection + "/{id}"
		out = append(out,
			model.APIEndpoint{Path: collection, Method: http.MethodGet, Source: model.SourceHeuristic},
			model.APIEndpoint{Path: item, Method: http.MethodGet, Parameters: idParam, Source: model.SourceHeuristic},
			model.APIEndpoint{Path: collection, Method: http.MethodPost, Source: model.SourceHeuristic},
			model.APIEndpoint{Path: item, Method: http.MethodPut, Parameters: idParam, Source: model.SourceHeuristic},
			model.APIEndpoint{Path: item, Method: http.MethodDelete, Parameters: idParam, Source: model.SourceHeuristic},
		)
	}
	for _, a := range authActions {
		out = append(out, model.APIEndpoint{Path: "/api/auth/" + a, Method: http.MethodPost, Source: model.SourceHeuristic})
	}
	return out
}
