package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"flierbuilder/internal/session"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func photoForm() url.Values {
	values := validForm(actionPhoto)
	values.Set("tmod-photo-type", "local")
	return values
}

func TestPhoto_UploadLocal(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(postMultipart(t, photoForm(), upload{"tmod-photo-local", "Jane Doe.png", pngBytes}), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	state := env.states.get(testSessionID)
	key, ok := state.PhotoKey("Jane-Doe.png")
	if !ok {
		t.Fatalf("expected the photo to be recorded, got %v", state.Photos)
	}
	if !strings.HasPrefix(key, "sessions/sid-1/photos/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected object key %q", key)
	}
	if _, ok := env.photos.objects[key]; !ok {
		t.Fatalf("expected the object to be stored")
	}
	if state.Document == nil || state.Document.Tmod.PhotoPath != "Jane-Doe.png" {
		t.Fatalf("expected the photo path to be set, got %+v", state.Document)
	}
}

func TestPhoto_ReplacingDeletesPreviousObject(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	cookie := env.cookie(t, testSessionID, false)

	env.do(postMultipart(t, photoForm(), upload{"tmod-photo-local", "jane.png", pngBytes}), cookie)
	first, _ := env.states.get(testSessionID).PhotoKey("jane.png")
	env.do(postMultipart(t, photoForm(), upload{"tmod-photo-local", "jane.png", pngBytes}), cookie)
	second, _ := env.states.get(testSessionID).PhotoKey("jane.png")

	if first == "" || first == second {
		t.Fatalf("expected a new object key, got %q then %q", first, second)
	}
	if len(env.photos.deleted) != 1 || env.photos.deleted[0] != first {
		t.Fatalf("expected the replaced object to be deleted, got %v", env.photos.deleted)
	}
}

func TestPhoto_RejectsNonImage(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	values := photoForm()
	values.Set("tmod-photo-path", "old.png")

	rec := env.do(postMultipart(t, values, upload{"tmod-photo-local", "notes.png", []byte("just text")}), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Photo rejected") {
		t.Fatalf("expected an alert")
	}
	state := env.states.get(testSessionID)
	if len(state.Photos) != 0 || len(env.photos.objects) != 0 {
		t.Fatalf("nothing may be stored")
	}
	if state.Document.Tmod.PhotoPath != "old.png" {
		t.Fatalf("photo path must stay unchanged, got %q", state.Document.Tmod.PhotoPath)
	}
	if !hasLine(state.ErrorLog, "Failed to upload image") {
		t.Fatalf("expected the failure in the error log, got %v", state.ErrorLog)
	}
}

func TestPhoto_DailyQuota(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.counter.counts[photoUploadKeyPrefix+testSessionID] = defaultDailyPhotoUploads

	rec := env.do(postMultipart(t, photoForm(), upload{"tmod-photo-local", "jane.png", pngBytes}), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.photos.objects) != 0 {
		t.Fatalf("nothing may be stored over quota")
	}
}

func TestPhoto_NoneClearsPath(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	values := validForm(actionPhoto)
	values.Set("tmod-photo-path", "jane.png")

	rec := env.do(postForm(values), env.cookie(t, testSessionID, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if path := env.states.get(testSessionID).Document.Tmod.PhotoPath; path != "" {
		t.Fatalf("photo path = %q", path)
	}
}

func TestPhoto_ServeRequiresOwnership(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	own := "sessions/sid-1/photos/abc.png"
	foreign := "sessions/sid-2/photos/def.png"
	env.photos.objects[own] = pngBytes
	env.photos.objects[foreign] = pngBytes
	env.states.states[testSessionID] = session.State{Photos: map[string]string{"jane.png": own}}
	cookie := env.cookie(t, testSessionID, false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/photos/"+own, nil), cookie)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d content type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	for _, key := range []string{foreign, "sessions/sid-1/photos/unknown.png", "sessions/sid-1/../sid-2/photos/def.png"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/photos/"+key, nil), cookie)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", key, rec.Code)
		}
	}
}

func TestPhotoName(t *testing.T) {
	cases := map[string]string{
		"Jane Doe.png":          "Jane-Doe.png",
		`C:\Users\me\photo.png`: "photo.png",
		"../../etc/passwd":      "passwd",
		"http-cam.jpg":          "photo-http-cam.jpg",
		"...":                   "photo.jpg",
	}
	for in, want := range cases {
		if got := photoName(in, ".jpg"); got != want {
			t.Errorf("photoName(%q) = %q, want %q", in, got, want)
		}
	}
}
