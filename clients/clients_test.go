package clients

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASRFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "answer.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(b))
		json.NewEncoder(w).Encode(ASRResp{
			Language: "en",
			Segments: []TransSeg{{Start: 0, End: 1.5, Text: "Hello."}, {Start: 1.5, End: 3, Text: " I love it."}},
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	out, err := NewHTTP().ASRFile(t.Context(), srv.URL, path)
	require.NoError(t, err)
	assert.Len(t, out.Segments, 2)
	assert.Equal(t, "Hello. I love it.", out.Transcript())
}

func TestASRStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP().ASR(t.Context(), srv.URL, "a.wav", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asr 503")
	assert.Contains(t, err.Error(), "model offline")
}

func TestFaceAPI(t *testing.T) {
	var loaded ModelLoadReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/load":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&loaded))
			w.WriteHeader(http.StatusOK)
		case "/detect":
			f, hdr, err := r.FormFile("image")
			require.NoError(t, err)
			f.Close()
			assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
			json.NewEncoder(w).Encode(DetectResp{Faces: []DetectedFace{{
				Gender: "male", Age: 31.6, Expressions: map[string]float64{"happy": 0.9, "neutral": 0.1},
			}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fa := NewFaceAPI(NewHTTP(), srv.URL)
	require.NoError(t, fa.LoadModels(t.Context(), "/models"))
	assert.Equal(t, "/models", loaded.Source)
	assert.Equal(t, FaceNets, loaded.Nets)

	out, err := fa.Detect(t.Context(), []byte{0xff, 0xd8})
	require.NoError(t, err)
	require.Len(t, out.Faces, 1)
	assert.Equal(t, "male", out.Faces[0].Gender)
	assert.InDelta(t, 0.9, out.Faces[0].Expressions["happy"], 1e-9)
}

func TestFaceAPILoadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no weights", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewFaceAPI(NewHTTP(), srv.URL).LoadModels(t.Context(), "https://cdn.example/weights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "faceapi load 404")
}

func TestFacePlusPlus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "secret", r.FormValue("api_secret"))
		assert.Equal(t, "gender,age,smiling,emotion", r.FormValue("return_attributes"))
		_, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		w.Write([]byte(`{"request_id":"r1","faces":[{"face_token":"t","attributes":{
			"gender":{"value":"Female"},"age":{"value":28},
			"smile":{"value":82.5,"threshold":50.0},
			"emotion":{"happiness":80.1,"neutral":19.9}}}]}`))
	}))
	defer srv.Close()

	fpp, err := NewFacePlusPlus(NewHTTPWithTimeout(time.Second), srv.URL, "key", "secret")
	require.NoError(t, err)
	out, err := fpp.Detect(t.Context(), []byte("jpeg"))
	require.NoError(t, err)
	require.Len(t, out.Faces, 1)
	a := out.Faces[0].Attributes
	assert.Equal(t, "Female", a.Gender.Value)
	assert.Equal(t, 28.0, a.Age.Value)
	assert.Equal(t, 50.0, a.Smile.Threshold)
	assert.InDelta(t, 80.1, a.Emotion["happiness"], 1e-9)
}

func TestFacePlusPlusErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_message":"IMAGE_ERROR_UNSUPPORTED_FORMAT"}`))
	}))
	defer srv.Close()

	fpp, err := NewFacePlusPlus(NewHTTP(), srv.URL, "key", "secret")
	require.NoError(t, err)
	_, err = fpp.Detect(t.Context(), []byte("nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAGE_ERROR_UNSUPPORTED_FORMAT")
}

func TestFacePlusPlusNeedsCredentials(t *testing.T) {
	_, err := NewFacePlusPlus(NewHTTP(), "", "", "secret")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	fpp, err := NewFacePlusPlus(NewHTTP(), "", "k", "s")
	require.NoError(t, err)
	assert.Equal(t, FacePlusPlusURL, fpp.url)
}
