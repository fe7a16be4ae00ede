package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"flierbuilder/internal/database"
	"flierbuilder/internal/errlog"
	"flierbuilder/internal/flier"
	"flierbuilder/internal/session"
	"flierbuilder/internal/tasks"
	"flierbuilder/internal/web"
)

func TestEditor_ShowStartsNewSessionWithDefaultDocument(t *testing.T) {
	doc, err := flier.DecodeBytes(web.DefaultDocument())
	if err != nil {
		t.Fatalf("decode default: %v", err)
	}
	env := newTestEnv(t, envOptions{defaults: fakeDefaults{doc: doc}})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), doc.ClubInfo.Name) {
		t.Fatalf("expected the default club name in the form")
	}
	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatalf("expected a session cookie")
	}
	claims, err := env.sessions.Validate(cookie.Value)
	if err != nil {
		t.Fatalf("validate cookie: %v", err)
	}
	state := env.states.get(claims.SessionID)
	if state.Document == nil || state.Document.ClubInfo.Name != doc.ClubInfo.Name {
		t.Fatalf("expected the default document in the session, got %+v", state.Document)
	}
}

func TestEditor_ShowFallsBackToBlankTemplate(t *testing.T) {
	env := newTestEnv(t, envOptions{defaults: fakeDefaults{err: errBoom}})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor", nil), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	state := env.states.get(testSessionID)
	if state.Document == nil || state.Document.ClubInfo.Name != flier.BlankTemplate().ClubInfo.Name {
		t.Fatalf("expected the blank template, got %+v", state.Document)
	}
	if !hasLine(state.ErrorLog, "Failed to load default document") {
		t.Fatalf("expected the failure in the error log, got %v", state.ErrorLog)
	}
	if !strings.Contains(rec.Body.String(), "Failed to load default document") {
		t.Fatalf("expected the error log panel to show the failure")
	}
}

func TestEditor_ShowConsumesAlert(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	blank := flier.BlankTemplate()
	env.states.states[testSessionID] = session.State{Document: &blank, Alert: "Archived flier unreadable."}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor", nil), env.cookie(t, testSessionID, false))
	if !strings.Contains(rec.Body.String(), "Archived flier unreadable.") {
		t.Fatalf("expected the alert on the page")
	}
	if env.states.get(testSessionID).Alert != "" {
		t.Fatalf("alert should be shown once")
	}
}

func TestEditor_SaveReturnsNamedAttachment(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(postForm(validForm(actionSave)), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=downtown-club-2024-05-01.json" {
		t.Fatalf("content disposition = %q", got)
	}
	saved, err := flier.DecodeBytes(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if err := flier.Validate(saved); err != nil {
		t.Fatalf("saved document must validate: %v", err)
	}
	if saved.Theme.Lines[0].Text != "GROW" || saved.ContactPersons[0].Name != "Sam" {
		t.Fatalf("unexpected document: %+v", saved)
	}

	state := env.states.get(testSessionID)
	if state.Document == nil || state.Document.ClubInfo.Name != "Downtown Club" {
		t.Fatalf("saved document must become current")
	}
	records, err := env.fliers.List(t.Context(), 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one archived flier, got %d (%v)", len(records), err)
	}
	if records[0].Status != database.StatusSaved || records[0].SessionID != testSessionID {
		t.Fatalf("unexpected archive record: %+v", records[0])
	}
}

func TestEditor_SaveRejectsIncompleteDocument(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	blank := flier.BlankTemplate()
	env.states.states[testSessionID] = session.State{Document: &blank}

	values := validForm(actionSave)
	values.Del("theme-text-0")
	rec := env.do(postForm(values), env.cookie(t, testSessionID, false))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Fatalf("no file may be produced for an invalid document")
	}
	if !strings.Contains(rec.Body.String(), "Cannot save") {
		t.Fatalf("expected an alert")
	}
	state := env.states.get(testSessionID)
	if !hasLine(state.ErrorLog, "Validation failed") || !hasLine(state.ErrorLog, `"stage":"theme"`) {
		t.Fatalf("expected the validation failure in the error log, got %v", state.ErrorLog)
	}
	if state.Document.ClubInfo.Name != blank.ClubInfo.Name {
		t.Fatalf("the current document must not change")
	}
	if records, _ := env.fliers.List(t.Context(), 10); len(records) != 0 {
		t.Fatalf("nothing may be archived")
	}
}

func TestEditor_LoadDocument(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	values := validForm(actionLoad)
	data := `{
		"clubInfo": {"name": "Loaded Club", "number": "1", "area": "1", "division": "A", "district": "1"},
		"meetingInfo": {"number": "1", "date": "2024-06-01", "timeStart": "7", "timeEnd": "9", "location": "Hall"},
		"theme": {"lines": [{"text": "SPEAK", "color": ["WHITE", "GOLD"]}]},
		"tmod": {"name": "Ann Lee", "photoPath": ""},
		"contactPersons": [{"name": "Sam", "phone": "1"}]
	}`

	rec := env.do(postMultipart(t, values, upload{"document", "club.json", []byte(data)}), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Loaded Club") || !strings.Contains(rec.Body.String(), "#FFFFFF") {
		t.Fatalf("expected the loaded document in the form")
	}
	state := env.states.get(testSessionID)
	if state.Document == nil || state.Document.ClubInfo.Name != "Loaded Club" {
		t.Fatalf("loaded document must become current")
	}
}

func TestEditor_LoadMalformedKeepsState(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	blank := flier.BlankTemplate()
	env.states.states[testSessionID] = session.State{Document: &blank}

	rec := env.do(postMultipart(t, validForm(actionLoad), upload{"document", "broken.json", []byte(`{"clubInfo": `)}), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "broken.json is not a valid flier file.") {
		t.Fatalf("expected an alert naming the file")
	}
	state := env.states.get(testSessionID)
	if state.Document.ClubInfo.Name != blank.ClubInfo.Name {
		t.Fatalf("the current document must not change")
	}
	if !hasLine(state.ErrorLog, "Failed to parse JSON file") {
		t.Fatalf("expected the parse failure in the error log, got %v", state.ErrorLog)
	}
}

func TestEditor_PreviewHandsOffToPreviewPage(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	cookie := env.cookie(t, testSessionID, false)

	rec := env.do(postForm(validForm(actionPreview)), cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/preview" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if _, ok := env.handoffs.docs[testSessionID]; !ok {
		t.Fatalf("expected a handoff document")
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/preview", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d", rec.Code)
	}
	if rec.Header().Get("X-Flier-Source") != "handoff" {
		t.Fatalf("source = %q", rec.Header().Get("X-Flier-Source"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, "GROW") || !strings.Contains(body, ">JD<") {
		t.Fatalf("expected theme text and initials placeholder in the preview")
	}
}

func TestEditor_NewResetsDocumentAndErrorLog(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	doc := flier.Fallback(timeForTest())
	env.states.states[testSessionID] = session.State{Document: &doc, ErrorLog: []string{"old failure"}}

	rec := env.do(postForm(validForm(actionNew)), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	state := env.states.get(testSessionID)
	if state.Document.ClubInfo.Name != flier.BlankTemplate().ClubInfo.Name {
		t.Fatalf("expected the blank template")
	}
	if len(state.ErrorLog) != 0 {
		t.Fatalf("expected the error log to be cleared, got %v", state.ErrorLog)
	}
}

func TestEditor_ErrorLogDownload(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.states.states[testSessionID] = session.State{ErrorLog: []string{"first", "second"}}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor/errorlog", nil), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "first\nsecond" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename="+errlog.Filename {
		t.Fatalf("content disposition = %q", got)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestEditor_PDFEnqueuesTask(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(postForm(validForm(actionPDF)), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.queue.tasks) != 1 || env.queue.tasks[0].Type() != tasks.TypeFlierPDF {
		t.Fatalf("expected one pdf task, got %d", len(env.queue.tasks))
	}
	var payload tasks.FlierPDFPayload
	if err := json.Unmarshal(env.queue.tasks[0].Payload(), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	record, err := env.fliers.Get(t.Context(), payload.FlierID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != database.StatusPending || payload.SessionID != testSessionID {
		t.Fatalf("unexpected record %+v payload %+v", record, payload)
	}
}

func TestEditor_PDFEnqueueFailureMarksRecord(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.queue.err = errBoom

	rec := env.do(postForm(validForm(actionPDF)), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	records, _ := env.fliers.List(t.Context(), 10)
	if len(records) != 1 || records[0].Status != database.StatusFailed {
		t.Fatalf("expected a failed record, got %+v", records)
	}
	if !hasLine(env.states.get(testSessionID).ErrorLog, "Failed to enqueue PDF task") {
		t.Fatalf("expected the enqueue failure in the error log")
	}
}

func TestEditor_OpenArchivedFlier(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	doc := flier.Fallback(timeForTest())
	content, err := flier.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	record := database.Flier{SessionID: "other", ClubName: doc.ClubInfo.Name, Content: datatypes.JSON(content), Status: database.StatusSaved}
	if err := env.fliers.Create(t.Context(), &record); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor/open/1", nil), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/editor" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
	state := env.states.get(testSessionID)
	if state.Document == nil || state.Document.ClubInfo.Name != doc.ClubInfo.Name {
		t.Fatalf("expected the archived document in the session")
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/editor/open/99", nil), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing flier status = %d", rec.Code)
	}
}

func TestEditor_OpenRestoresOwnPhotos(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	doc := flier.Fallback(timeForTest())
	content, err := flier.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	own := "sessions/" + testSessionID + "/photos/a1.png"
	photos, err := json.Marshal(map[string]string{
		"jane.png": own,
		"sam.png":  "sessions/other/photos/b2.png",
	})
	if err != nil {
		t.Fatalf("marshal photos: %v", err)
	}
	record := database.Flier{SessionID: testSessionID, Content: datatypes.JSON(content), Photos: datatypes.JSON(photos), Status: database.StatusSaved}
	if err := env.fliers.Create(t.Context(), &record); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor/open/1", nil), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	state := env.states.get(testSessionID)
	if key, ok := state.PhotoKey("jane.png"); !ok || key != own {
		t.Fatalf("own photo not restored: %v", state.Photos)
	}
	if _, ok := state.PhotoKey("sam.png"); ok {
		t.Fatalf("another session's photo must not be attached: %v", state.Photos)
	}
}

func TestEditor_ShowWithoutChangesDoesNotSave(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	blank := flier.BlankTemplate()
	env.states.states[testSessionID] = session.State{Document: &blank}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/editor", nil), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// 模拟并发的保存：展示页不得覆盖它
	newer := flier.Fallback(timeForTest())
	env.states.states[testSessionID] = session.State{Document: &newer}
	env.do(httptest.NewRequest(http.MethodGet, "/editor", nil), env.cookie(t, testSessionID, false))
	if got := env.states.get(testSessionID).Document; got == nil || got.ClubInfo.Name != newer.ClubInfo.Name {
		t.Fatalf("page view replaced the stored document: %+v", got)
	}
}

func TestEditor_UnknownAction(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(postForm(validForm("explode")), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
