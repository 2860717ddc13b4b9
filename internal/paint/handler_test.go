package paint

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupApp(seed []Product) (*fiber.App, *recordingNotifier) {
	notifier := &recordingNotifier{}
	app := fiber.New()
	NewHandler(NewService(NewInMemoryRepository(seed), notifier)).RegisterRoutes(app)
	return app, notifier
}

func send(t *testing.T, app *fiber.App, method, path, contentType, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, b
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	contentType := ""
	if body != "" {
		contentType = fiber.MIMEApplicationJSON
	}
	return send(t, app, method, path, contentType, body)
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func TestCreateProduct_EchoesFieldsWithID(t *testing.T) {
	app, notifier := setupApp(nil)

	status, body := doJSON(t, app, "POST", "/api/paint-products",
		`{"brand":"Acme","paint":"Shield","interior":true,"exterior":false,"finishes":"Satin","primer":false,"residentialPrice":1.2,"commercialPrice":1.1,"coverage":300}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}

	var got map[string]any
	decode(t, body, &got)
	id, ok := got["id"].(float64)
	if !ok || id <= 0 {
		t.Fatalf("expected a positive numeric id, got %v", got["id"])
	}
	want := map[string]any{
		"brand":            "Acme",
		"paint":            "Shield",
		"interior":         true,
		"exterior":         false,
		"finishes":         "Satin",
		"primer":           false,
		"residentialPrice": 1.2,
		"commercialPrice":  1.1,
		"coverage":         300.0,
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s: expected %v, got %v", k, v, got[k])
		}
	}
	if _, ok := got["bitrixId"]; ok {
		t.Fatalf("a new product must not carry bitrixId: %s", body)
	}
	if n := len(notifier.all()); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
}

func TestCreateProduct_MalformedBody(t *testing.T) {
	app, notifier := setupApp(nil)

	status, body := doJSON(t, app, "POST", "/api/paint-products", `{"brand":`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if !strings.Contains(string(body), `"error"`) {
		t.Fatalf("expected an error body, got %s", body)
	}
	if n := len(notifier.all()); n != 0 {
		t.Fatalf("expected no notification, got %d", n)
	}
}

func TestCreateProduct_InvalidPrice(t *testing.T) {
	app, _ := setupApp(nil)

	status, body := doJSON(t, app, "POST", "/api/paint-products", `{"brand":"Acme","paint":"Shield","coverage":-1}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if !strings.Contains(string(body), `"coverage"`) {
		t.Fatalf("expected coverage to be reported, got %s", body)
	}
}

// Form values are parsed into strings backed by the request buffer, which
// later requests overwrite. The notified product must keep its own copy.
func TestCreateProduct_FormBodySurvivesLaterRequests(t *testing.T) {
	app, notifier := setupApp(nil)

	status, body := send(t, app, "POST", "/api/paint-products", fiber.MIMEApplicationForm,
		"brand=Acme&paint=Shield&finishes=Satin&primerNote=none")
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	for i := 0; i < 20; i++ {
		send(t, app, "POST", "/api/paint-products", fiber.MIMEApplicationForm,
			"brand=ZZZZ&paint=XXXXXX&finishes=YYYYY&primerNote=WWWW")
	}

	first := notifier.all()[0].product
	got := fmt.Sprintf("%s|%s|%s|%s", first.Brand, first.Paint, first.Finishes, first.PrimerNote)
	if got != "Acme|Shield|Satin|none" {
		t.Fatalf("notified product changed after later requests: %q", got)
	}
}

func TestUpdateProduct_FormBodySurvivesLaterRequests(t *testing.T) {
	app, notifier := setupApp([]Product{{ID: 12, Brand: "Acme", Paint: "Shield", Coverage: 300}})

	status, body := send(t, app, "PUT", "/api/paint-products/12", fiber.MIMEApplicationForm, "paint=Shield+Max")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	for i := 0; i < 20; i++ {
		send(t, app, "POST", "/api/paint-products", fiber.MIMEApplicationForm, "brand=ZZZZ&paint=XXXXXXXXXX")
	}

	first := notifier.all()[0].product
	if first.Paint != "Shield Max" {
		t.Fatalf("notified product changed after later requests: %q", first.Paint)
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	app, _ := setupApp(SeedCatalog())

	for _, body := range []string{`{"brand":"Nobody"}`, `not json`} {
		status, got := doJSON(t, app, "PUT", "/api/paint-products/99999", body)
		if status != fiber.StatusNotFound {
			t.Fatalf("body %s: expected 404, got %d", body, status)
		}
		if strings.TrimSpace(string(got)) != `{"error":"Product not found"}` {
			t.Fatalf("body %s: unexpected response %s", body, got)
		}
	}
}

func TestUpdateProduct_IDInBodyIsIgnored(t *testing.T) {
	app, notifier := setupApp([]Product{{ID: 12, Brand: "Acme", Paint: "Shield", Coverage: 300}})

	status, body := doJSON(t, app, "PUT", "/api/paint-products/12", `{"id":500,"paint":"Shield Max","coverage":320}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var got Product
	decode(t, body, &got)
	if got.ID != 12 || got.Brand != "Acme" || got.Paint != "Shield Max" || got.Coverage != 320 {
		t.Fatalf("unexpected merge result: %+v", got)
	}

	changes := notifier.all()
	if len(changes) != 1 || !changes[0].isUpdate {
		t.Fatalf("expected one update notification, got %+v", changes)
	}
}

func TestUpdateProduct_BodyCannotChangeCRMLink(t *testing.T) {
	linked := int64(77)
	app, _ := setupApp([]Product{
		{ID: 12, Brand: "Acme", Paint: "Shield", BitrixID: &linked},
		{ID: 13, Brand: "Acme", Paint: "Guard"},
	})

	status, body := doJSON(t, app, "PUT", "/api/paint-products/12", `{"paint":"Shield Max","bitrixId":999}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var got Product
	decode(t, body, &got)
	if got.BitrixID == nil || *got.BitrixID != 77 {
		t.Fatalf("expected link 77 to be kept, got %v", got.BitrixID)
	}

	status, body = send(t, app, "PUT", "/api/paint-products/13", fiber.MIMEApplicationForm, "paint=Guard+Max&BitrixID=999")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	got = Product{}
	decode(t, body, &got)
	if got.BitrixID != nil {
		t.Fatalf("expected no link, got %d", *got.BitrixID)
	}
}

func TestDeleteProduct(t *testing.T) {
	app, notifier := setupApp([]Product{{ID: 12, Brand: "Acme"}, {ID: 13, Brand: "Other"}})

	status, body := doJSON(t, app, "DELETE", "/api/paint-products/12", "")
	if status != fiber.StatusNoContent || len(body) != 0 {
		t.Fatalf("expected 204 with empty body, got %d %q", status, body)
	}

	status, body = doJSON(t, app, "GET", "/api/paint-products", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var list []Product
	decode(t, body, &list)
	if len(list) != 1 || list[0].ID != 13 {
		t.Fatalf("expected only product 13 to remain, got %+v", list)
	}

	status, _ = doJSON(t, app, "DELETE", "/api/paint-products/12", "")
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", status)
	}
	if n := len(notifier.all()); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
}

func TestProductRoutes_BadID(t *testing.T) {
	app, _ := setupApp(nil)

	for _, method := range []string{"GET", "DELETE"} {
		status, _ := doJSON(t, app, method, "/api/paint-products/abc", "")
		if status != fiber.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", method, status)
		}
	}
}

func TestProductRoutes_Registered(t *testing.T) {
	app, _ := setupApp(nil)

	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Method+" "+r.Path] = true
		}
	}
	for _, want := range []string{
		"GET /api/paint-products",
		"POST /api/paint-products",
		"PUT /api/paint-products/:id",
		"DELETE /api/paint-products/:id",
	} {
		if !routes[want] {
			t.Fatalf("expected route %q to be registered", want)
		}
	}
}
