package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path, token string, files []formFile, description string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	if description != "" {
		if err := mw.WriteField("description", description); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

func TestUploadReceipt(t *testing.T) {
	env := newTestEnv(t)
	id := createDebt(t, env, map[string]any{"name": "Card", "totalAmount": 1000})

	req := multipartRequest(t, "/v1/debts/"+id+"/receipts", env.token,
		[]formFile{{field: "file", name: "june.pdf", data: pdf}}, "June statement")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["mimeType"] != "application/pdf" || body["description"] != "June statement" {
		t.Errorf("unexpected receipt %v", body)
	}
	if env.blobs.count() != 1 {
		t.Errorf("expected 1 stored object, got %d", env.blobs.count())
	}

	listRec := env.do(t, http.MethodGet, "/v1/debts/"+id+"/receipts", env.token, nil)
	if total, _ := decodeBody(t, listRec)["total"].(float64); total != 1 {
		t.Errorf("expected 1 receipt, got %v", total)
	}

	receiptID, _ := body["id"].(string)
	delRec := env.do(t, http.MethodDelete, "/v1/receipts/"+receiptID, env.other, nil)
	if delRec.Code != http.StatusNotFound {
		t.Errorf("other user delete: expected 404, got %d", delRec.Code)
	}
	delRec = env.do(t, http.MethodDelete, "/v1/receipts/"+receiptID, env.token, nil)
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", delRec.Code)
	}
	if env.blobs.count() != 0 {
		t.Errorf("expected stored object removed, %d left", env.blobs.count())
	}
}

func TestUploadReceipt_Rejections(t *testing.T) {
	env := newTestEnv(t)
	id := createDebt(t, env, map[string]any{"name": "Card", "totalAmount": 1000})

	cases := []struct {
		name  string
		files []formFile
		want  int
	}{
		{"no file", nil, http.StatusBadRequest},
		{"text file", []formFile{{field: "file", name: "notes.txt", data: []byte("hello there")}}, http.StatusUnsupportedMediaType},
		{"too large", []formFile{{field: "file", name: "big.pdf", data: append(pdf, make([]byte, 5<<20)...)}}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, multipartRequest(t, "/v1/debts/"+id+"/receipts", env.token, tc.files, ""))
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
	if env.blobs.count() != 0 {
		t.Errorf("nothing should be stored, got %d objects", env.blobs.count())
	}
}

func TestBulkUploadReceipts(t *testing.T) {
	env := newTestEnv(t)
	id := createDebt(t, env, map[string]any{"name": "Card", "totalAmount": 1000})

	files := []formFile{
		{field: "files", name: "a.pdf", data: pdf},
		{field: "files", name: "b.pdf", data: pdf},
		{field: "files", name: "c.txt", data: []byte("plain text")},
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartRequest(t, "/v1/debts/"+id+"/receipts/bulk", env.token, files, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["totalUploaded"] != float64(2) || body["totalErrors"] != float64(1) {
		t.Errorf("unexpected bulk result %v", body)
	}
}

func TestBulkUploadReceipts_TooMany(t *testing.T) {
	env := newTestEnv(t)
	id := createDebt(t, env, map[string]any{"name": "Card", "totalAmount": 1000})

	files := make([]formFile, 11)
	for i := range files {
		files[i] = formFile{field: "files", name: "r.pdf", data: pdf}
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartRequest(t, "/v1/debts/"+id+"/receipts/bulk", env.token, files, ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
