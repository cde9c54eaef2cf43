package links

import "github.com/atelier-studio/admin-service/internal/domain"

// Link shapes mirror the routes the site frontend writes into notification
// records. These must stay in sync with the frontend router.
func init() {
	Register(domain.KindCourse, sprintf("/courses/view?id=%s"))
	Register(domain.KindEvent, sprintf("/events/list?id=%s"))
	Register(domain.KindEvent, sprintf("/events?id=%s"))
	Register(domain.KindPost, sprintf("/blog/%s"))
	Register(domain.KindProduct, sprintf("/shop/item?id=%s"))
	Register(domain.KindProject, sprintf("/projects/%s"))
	Register(domain.KindTool, sprintf("/tools/%s"))

	// Older notifications link through the generic detail route.
	RegisterGeneric(sprintf("/view?id=%s"))
}
