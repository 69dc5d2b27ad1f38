package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

type mockConverter struct {
	mock.Mock
}

func (m *mockConverter) Convert(ctx context.Context, extractionID common.ID, itemIDs []common.ID) (*extraction.ConversionResult, error) {
	args := m.Called(ctx, extractionID, itemIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extraction.ConversionResult), args.Error(1)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestConversionHandler_Convert(t *testing.T) {
	converter := &mockConverter{}
	h := NewConversionHandler(converter)

	extractionID := common.ID("ext-1")
	result := &extraction.ConversionResult{RFQID: common.ID("rfq-1"), LineItemsCreated: 3}
	converter.On("Convert", mock.Anything, extractionID, mock.Anything).Return(result, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/extractions/ext-1/convert", bytes.NewReader([]byte(`{}`)))
	req = withURLParam(req, "id", string(extractionID))
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	converter.AssertExpectations(t)
}

type mockDuplicateFinder struct {
	mock.Mock
}

func (m *mockDuplicateFinder) FindDuplicates(ctx context.Context, rfqID common.ID) ([]extraction.DuplicateGroup, error) {
	args := m.Called(ctx, rfqID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]extraction.DuplicateGroup), args.Error(1)
}

type mockExtractionGetter struct {
	mock.Mock
}

func (m *mockExtractionGetter) Get(ctx context.Context, id common.ID) (*extraction.Extraction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extraction.Extraction), args.Error(1)
}

func TestDuplicatesHandler_List_NoLinkedRFQReturnsEmpty(t *testing.T) {
	getter := &mockExtractionGetter{}
	finder := &mockDuplicateFinder{}
	h := NewDuplicatesHandler(getter, finder)

	id := common.ID("ext-1")
	getter.On("Get", mock.Anything, id).Return(&extraction.Extraction{ID: id}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/extractions/ext-1/duplicates", nil)
	req = withURLParam(req, "id", string(id))
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var groups []extraction.DuplicateGroup
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&groups))
	assert.Empty(t, groups)
	finder.AssertNotCalled(t, "FindDuplicates", mock.Anything, mock.Anything)
}

func TestDuplicatesHandler_List_DelegatesWhenRFQLinked(t *testing.T) {
	getter := &mockExtractionGetter{}
	finder := &mockDuplicateFinder{}
	h := NewDuplicatesHandler(getter, finder)

	id := common.ID("ext-1")
	rfqID := common.ID("rfq-1")
	getter.On("Get", mock.Anything, id).Return(&extraction.Extraction{ID: id, RFQID: &rfqID}, nil)
	finder.On("FindDuplicates", mock.Anything, rfqID).Return([]extraction.DuplicateGroup{{IMPACode: "123456"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/extractions/ext-1/duplicates", nil)
	req = withURLParam(req, "id", string(id))
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	finder.AssertExpectations(t)
}
