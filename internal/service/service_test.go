package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/auth"
	"eventreg/internal/broadcast"
	"eventreg/internal/dto"
	"eventreg/internal/idalloc"
	"eventreg/internal/imagehost"
	"eventreg/internal/model"
	"eventreg/internal/payment"
	"eventreg/internal/receipt"
	"eventreg/internal/repo"
	"eventreg/internal/wizard"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeHost struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeHost) Upload(_ context.Context, file imagehost.File) (imagehost.Asset, error) {
	_, _ = io.Copy(io.Discard, file.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return imagehost.Asset{
		SecureURL: fmt.Sprintf("https://res.example.com/img/%d.png", f.calls),
		PublicID:  fmt.Sprintf("img_%d", f.calls),
	}, nil
}

func (f *fakeHost) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	router *gin.Engine
	store  *repo.Memory
	host   *fakeHost
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	store := repo.NewMemory()

	hub := broadcast.NewHub(store, &log)
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Close)

	host := &fakeHost{}
	coordinator := receipt.NewCoordinator(store, host, nil, &log)
	pipeline := wizard.NewPipeline(wizard.NewSessions(time.Hour), store, idalloc.New(store), coordinator, nil, &log)

	svc := NewService(Deps{
		Repo:     store,
		Pipeline: pipeline,
		Hub:      hub,
		Images:   host,
		Auth:     auth.NewLocal(nil, 5, time.Minute),
		Tokens:   auth.NewTokens("test-secret", time.Hour, "test"),
		Payee:    payment.Payee{Handle: "farewell@upi", Name: "Farewell Committee"},
		QRSize:   128,
		Location: time.UTC,
		Log:      &log,
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/event", svc.GetEvent)
	r.POST("/register", svc.Register)
	r.GET("/register/:session", svc.GetRegistrationSession)
	r.GET("/register/:session/payment", svc.GetPayment)
	r.GET("/register/:session/payment/qr", svc.GetPaymentQR)
	r.POST("/register/:session/paid", svc.MarkPaid)
	r.POST("/register/:session/receipt", svc.UploadReceipt)
	r.GET("/gallery", svc.ListGallery)
	r.GET("/admin/registrations", svc.ListRegistrations)
	r.GET("/admin/registrations/export", svc.ExportRegistrations)
	r.PATCH("/admin/registrations/:id", svc.UpdateRegistration)
	r.DELETE("/admin/registrations/:id", svc.DeleteRegistration)
	r.PUT("/admin/event/settings", svc.UpdateEventSettings)
	r.PUT("/admin/event/details", svc.UpdateEventDetails)
	r.POST("/admin/gallery", svc.CreateGalleryImage)
	r.PATCH("/admin/gallery/:id", svc.UpdateGalleryImage)
	r.DELETE("/admin/gallery/:id", svc.DeleteGalleryImage)

	return &fixture{router: r, store: store, host: host}
}

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (f *fixture) doJSON(t *testing.T, method, path string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return f.do(t, method, path, body, "application/json")
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte, values map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (f *fixture) register(t *testing.T, name, rollNumber, phoneNumber string) dto.SessionResponse {
	t.Helper()
	w, env := f.doJSON(t, http.MethodPost, "/register", dto.RegisterRequest{
		Name: name, Year: model.Year3rd, RollNumber: rollNumber, Phone: phoneNumber,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.SessionResponse](t, env.Data)
}

func TestRegistrationWizardOverHTTP(t *testing.T) {
	f := newFixture(t)

	sess := f.register(t, "Asha", "21CS01", "98765-43210")
	assert.Equal(t, int(wizard.StepPayment), sess.Step)
	assert.Equal(t, "9876543210", sess.Phone)
	assert.Len(t, sess.RegistrationID, 4)

	w, env := f.do(t, http.MethodGet, "/register/"+sess.SessionID+"/payment", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	pay := decode[dto.PaymentResponse](t, env.Data)
	assert.Equal(t, model.DefaultPrice, pay.Amount)
	assert.Contains(t, pay.Link, "upi://pay?pa=farewell@upi&pn=Farewell%20Committee&am=600&cu=INR")
	assert.Contains(t, pay.Link, "tn=Entry%20Fee%20for%20Asha%20-%2021CS01%20-%203rd%20-%209876543210")

	w, _ = f.do(t, http.MethodGet, "/register/"+sess.SessionID+"/payment/qr", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w, env = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/paid", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int(wizard.StepReceipt), decode[dto.SessionResponse](t, env.Data).Step)

	body, ct := multipartBody(t, "file", "receipt.png", "image/png", pngBytes, nil)
	w, env = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/receipt", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[dto.SessionResponse](t, env.Data)
	assert.Equal(t, int(wizard.StepDone), done.Step)
	assert.Equal(t, "https://res.example.com/img/1.png", done.ReceiptURL)

	regs, err := f.store.FindRegistrationsByPhone(context.Background(), "+919876543210")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	reg := regs[0]
	assert.Equal(t, sess.RegistrationID, reg.RegistrationID)
	assert.Equal(t, "https://res.example.com/img/1.png", reg.ReceiptURL)
	assert.Equal(t, "img_1", reg.CloudinaryID)
}

func TestRegisterReportsEveryInvalidField(t *testing.T) {
	f := newFixture(t)

	w, env := f.doJSON(t, http.MethodPost, "/register", dto.RegisterRequest{
		Name: "  ", Year: "2nd", RollNumber: "21CS01", Phone: "12345",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ValidationFailed, env.Error.Code)

	fields := decode[map[string]string](t, env.Data)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "year")
	assert.Contains(t, fields, "phone")
	assert.NotContains(t, fields, "roll_number")

	regs, err := f.store.ListRegistrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestReceiptRejectedBeforeUpload(t *testing.T) {
	f := newFixture(t)
	sess := f.register(t, "Ravi", "21ME07", "9999999999")
	w, _ := f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/paid", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body, ct := multipartBody(t, "file", "receipt.pdf", "application/pdf", []byte("%PDF-1.4"), nil)
	w, env := f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/receipt", body, ct)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.FileNotImage, env.Error.Code)
	assert.Equal(t, "Only image files are allowed", env.Error.Desc)

	big := make([]byte, 6<<20)
	copy(big, pngBytes)
	body, ct = multipartBody(t, "file", "huge.png", "image/png", big, nil)
	w, env = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/receipt", body, ct)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, dto.FileTooLarge, env.Error.Code)

	w, env = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/receipt", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.FileMissing, env.Error.Code)

	assert.Zero(t, f.host.count())
	w, env = f.do(t, http.MethodGet, "/register/"+sess.SessionID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int(wizard.StepReceipt), decode[dto.SessionResponse](t, env.Data).Step)
}

func TestReceiptGoesToOwnRegistrationWhenPhoneShared(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "First", "21CS01", "9999999999")
	second := f.register(t, "Second", "21CS02", "9999999999")

	w, _ := f.do(t, http.MethodPost, "/register/"+second.SessionID+"/paid", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body, ct := multipartBody(t, "file", "receipt.png", "image/png", pngBytes, nil)
	w, env := f.do(t, http.MethodPost, "/register/"+second.SessionID+"/receipt", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, second.RegistrationID, decode[dto.SessionResponse](t, env.Data).RegistrationID)

	regs, err := f.store.FindRegistrationsByPhone(context.Background(), "+919999999999")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	byNumber := map[string]model.Registration{}
	for _, r := range regs {
		byNumber[r.RegistrationID] = r
	}
	assert.Empty(t, byNumber[first.RegistrationID].ReceiptURL)
	assert.Equal(t, "https://res.example.com/img/1.png", byNumber[second.RegistrationID].ReceiptURL)
}

func TestWizardStepsOutOfOrder(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, "/register/missing/paid", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.SessionNotFound, env.Error.Code)

	sess := f.register(t, "Meera", "21EE11", "9123456780")
	body, ct := multipartBody(t, "file", "receipt.png", "image/png", pngBytes, nil)
	w, env = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/receipt", body, ct)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.InvalidStep, env.Error.Code)

	w, _ = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/paid", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, env = f.do(t, http.MethodPost, "/register/"+sess.SessionID+"/paid", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.InvalidStep, env.Error.Code)
}

func seed(t *testing.T, store *repo.Memory, regs ...model.Registration) []model.Registration {
	t.Helper()
	out := make([]model.Registration, 0, len(regs))
	for i := range regs {
		r := regs[i]
		require.NoError(t, store.CreateRegistration(context.Background(), &r))
		out = append(out, r)
	}
	return out
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	regs := seed(t, f.store,
		model.Registration{Name: "Asha", Year: "3rd", RollNumber: "21CS01", Phone: "+919876543210", RegistrationID: "1234"},
		model.Registration{Name: `Ravi "R"`, Year: "4th", RollNumber: "20ME07", Phone: "+919999999999", RegistrationID: "5678"},
	)
	require.NoError(t, f.store.AttachReceipt(context.Background(), regs[1].ID, model.Receipt{URL: "https://res.example.com/r.png"}))

	w, _ := f.do(t, http.MethodGet, "/admin/registrations/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="registrations-\d{4}-\d{2}-\d{2}\.csv"`, w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Name,Year,Roll Number,Phone,Timestamp,Receipt URL", lines[0])

	ts := regs[0].Timestamp.In(time.UTC).Format("1/2/2006, 3:04:05 PM")
	assert.Equal(t, `"1234","Asha","3rd","21CS01","+919876543210","`+ts+`",""`, lines[1])
	assert.Contains(t, lines[2], `"Ravi ""R"""`)
	assert.True(t, strings.HasSuffix(lines[2], `,"https://res.example.com/r.png"`))

	w, _ = f.do(t, http.MethodGet, "/admin/registrations/export?q=ravi", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n"), 2)
}

func TestDeleteRegistrationReturnsFreshList(t *testing.T) {
	f := newFixture(t)
	regs := seed(t, f.store,
		model.Registration{Name: "Asha", Year: "3rd", RollNumber: "21CS01", Phone: "+919876543210", RegistrationID: "1234"},
		model.Registration{Name: "Ravi", Year: "4th", RollNumber: "20ME07", Phone: "+919999999999", RegistrationID: "5678"},
	)

	w, env := f.do(t, http.MethodDelete, "/admin/registrations/"+regs[0].ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.RegistrationsResponse](t, env.Data)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Registrations, 1)
	assert.Equal(t, regs[1].ID, list.Registrations[0].ID)

	w, env = f.do(t, http.MethodDelete, "/admin/registrations/"+regs[0].ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.RegistrationNotFound, env.Error.Code)
}

func TestUpdateRegistration(t *testing.T) {
	f := newFixture(t)
	regs := seed(t, f.store,
		model.Registration{Name: "Asha", Year: "3rd", RollNumber: "21CS01", Phone: "+919876543210", RegistrationID: "1234"},
	)

	w, env := f.doJSON(t, http.MethodPatch, "/admin/registrations/"+regs[0].ID, map[string]string{
		"phone": "91234 56780",
		"year":  "4th",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[dto.RegistrationsResponse](t, env.Data)
	require.Len(t, list.Registrations, 1)
	got := list.Registrations[0]
	assert.Equal(t, "+919123456780", got.Phone)
	assert.Equal(t, "4th", got.Year)
	assert.Equal(t, "Asha", got.Name)

	w, env = f.doJSON(t, http.MethodPatch, "/admin/registrations/"+regs[0].ID, map[string]string{"year": "1st"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ValidationFailed, env.Error.Code)

	w, _ = f.doJSON(t, http.MethodPatch, "/admin/registrations/unknown", map[string]string{"name": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRegistrationsFilters(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store,
		model.Registration{Name: "Asha", Year: "3rd", RollNumber: "21CS01", Phone: "+919876543210", RegistrationID: "1234"},
		model.Registration{Name: "Ravi", Year: "4th", RollNumber: "20ME07", Phone: "+919999999999", RegistrationID: "5678"},
	)

	_, env := f.do(t, http.MethodGet, "/admin/registrations?q=me07", nil, "")
	list := decode[dto.RegistrationsResponse](t, env.Data)
	require.Len(t, list.Registrations, 1)
	assert.Equal(t, "Ravi", list.Registrations[0].Name)

	_, env = f.do(t, http.MethodGet, "/admin/registrations?q=98765", nil, "")
	assert.Equal(t, 1, decode[dto.RegistrationsResponse](t, env.Data).Total)
}

func TestEventSettingsAndDetails(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/event", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	ev := decode[dto.EventResponse](t, env.Data)
	assert.Equal(t, model.DefaultPrice, ev.Settings.Price)
	assert.NotEmpty(t, ev.Settings.ID)
	assert.Equal(t, model.DefaultEventDetails().EventLocation, ev.Details.EventLocation)

	w, env = f.doJSON(t, http.MethodPut, "/admin/event/settings", map[string]int{"price": 750})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ev.Settings.ID, decode[model.EventSettings](t, env.Data).ID)

	w, _ = f.doJSON(t, http.MethodPut, "/admin/event/settings", map[string]int{"price": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.doJSON(t, http.MethodPut, "/admin/event/settings", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.doJSON(t, http.MethodPut, "/admin/event/details", map[string]string{"event_location": "Open Air Theatre"})
	require.Equal(t, http.StatusOK, w.Code)

	_, env = f.do(t, http.MethodGet, "/event", nil, "")
	ev = decode[dto.EventResponse](t, env.Data)
	assert.Equal(t, 750, ev.Settings.Price)
	assert.Equal(t, "Open Air Theatre", ev.Details.EventLocation)
	assert.Equal(t, model.DefaultEventDetails().EventTime, ev.Details.EventTime)

	sess := f.register(t, "Asha", "21CS01", "9876543210")
	_, env = f.do(t, http.MethodGet, "/register/"+sess.SessionID+"/payment", nil, "")
	assert.Equal(t, 750, decode[dto.PaymentResponse](t, env.Data).Amount)
}

func TestGalleryLifecycle(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, "image", "poster.png", "image/png", pngBytes, map[string]string{
		"title": "Poster", "category": model.CategoryPoster, "featured": "true",
	})
	w, env := f.do(t, http.MethodPost, "/admin/gallery", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	poster := decode[model.GalleryImage](t, env.Data)
	assert.Equal(t, "https://res.example.com/img/1.png", poster.ImageURL)
	assert.Equal(t, poster.ImageURL, poster.ThumbnailURL)

	body, ct = multipartBody(t, "image", "crowd.png", "image/png", pngBytes, map[string]string{
		"title": "Crowd", "category": model.CategoryEvent,
	})
	w, _ = f.do(t, http.MethodPost, "/admin/gallery", body, ct)
	require.Equal(t, http.StatusCreated, w.Code)

	body, ct = multipartBody(t, "image", "x.png", "image/png", pngBytes, map[string]string{
		"title": "Bad", "category": "selfie",
	})
	w, env = f.do(t, http.MethodPost, "/admin/gallery", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ValidationFailed, env.Error.Code)

	_, env = f.do(t, http.MethodGet, "/gallery?category=all", nil, "")
	assert.Len(t, decode[[]model.GalleryImage](t, env.Data), 2)
	_, env = f.do(t, http.MethodGet, "/gallery?featured=true", nil, "")
	featured := decode[[]model.GalleryImage](t, env.Data)
	require.Len(t, featured, 1)
	assert.Equal(t, "Poster", featured[0].Title)

	w, env = f.doJSON(t, http.MethodPatch, "/admin/gallery/"+poster.ID, map[string]any{"featured": false, "title": "Main poster"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Main poster", decode[model.GalleryImage](t, env.Data).Title)
	_, env = f.do(t, http.MethodGet, "/gallery?featured=true", nil, "")
	assert.Empty(t, decode[[]model.GalleryImage](t, env.Data))

	w, _ = f.do(t, http.MethodDelete, "/admin/gallery/"+poster.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, env = f.do(t, http.MethodDelete, "/admin/gallery/"+poster.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.GalleryNotFound, env.Error.Code)
}
