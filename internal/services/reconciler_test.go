package services

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/status"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type fakeDispatcher struct {
	scanCalls     int
	analysisCalls int
	lastAnalysis  AnalysisRequest
	scanErr       error
	analysisErr   error
}

func (d *fakeDispatcher) DispatchScan(ctx context.Context, req ScanRequest) error {
	d.scanCalls++
	return d.scanErr
}

func (d *fakeDispatcher) DispatchAnalysis(ctx context.Context, req AnalysisRequest) error {
	d.analysisCalls++
	d.lastAnalysis = req
	return d.analysisErr
}

type reconcilerEnv struct {
	db         *gorm.DB
	reconciler ReconcilerService
	dispatcher *fakeDispatcher
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection to :memory: sees its own database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&types.User{}, &types.Upload{}, &types.ScannerOutput{}, &types.Analysis{}, &types.SystemLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()
	db := openTestDB(t)
	log := logger.NewNop()
	dispatcher := &fakeDispatcher{}
	audit := NewAuditService(log, repos.NewSystemLogRepo(db, log))
	reconciler := NewReconcilerService(
		db, log,
		repos.NewUploadRepo(db, log),
		repos.NewScannerOutputRepo(db, log),
		repos.NewAnalysisRepo(db, log),
		dispatcher,
		audit,
	)
	return &reconcilerEnv{db: db, reconciler: reconciler, dispatcher: dispatcher}
}

func (env *reconcilerEnv) seedUpload(t *testing.T, st status.Upload) *types.Upload {
	t.Helper()
	user := &types.User{Email: "t@example.com", Username: "t", PasswordHash: "x", Role: types.RoleTeacher, IsActive: true}
	if err := env.db.FirstOrCreate(user, types.User{Email: "t@example.com"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	upload := &types.Upload{
		UserID:       user.ID,
		FileName:     "user_1/123_ab_exam.png",
		OriginalName: "exam.png",
		FileSize:     1024,
		ContentType:  "image/png",
		UploadPath:   "user_1/123_ab_exam.png",
		FileURL:      "https://storage.test/user_1/123_ab_exam.png",
		Status:       string(st),
	}
	if err := env.db.Create(upload).Error; err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	return upload
}

func (env *reconcilerEnv) uploadStatus(t *testing.T, id uint) string {
	t.Helper()
	var upload types.Upload
	if err := env.db.First(&upload, id).Error; err != nil {
		t.Fatalf("load upload %d: %v", id, err)
	}
	return upload.Status
}

func (env *reconcilerEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := env.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestScannerSuccessAdvancesToAnalyzing(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Scanning)

	res := ScannerResult{
		UploadID:        upload.ID,
		Status:          OutcomeSuccess,
		ScannedImageURL: "https://x/y.png",
		Meta: map[string]interface{}{
			"scannedText":       "1. What is 2+2? 4",
			"confidence":        0.93,
			"questionsDetected": float64(3),
			"answersDetected":   float64(3),
		},
	}
	got, err := env.reconciler.ApplyScannerResult(context.Background(), res, "10.0.0.1", "scanner/1.0")
	if err != nil {
		t.Fatalf("ApplyScannerResult: %v", err)
	}
	if got.Status != string(status.Analyzing) {
		t.Fatalf("status: want=%s got=%s", status.Analyzing, got.Status)
	}

	var out types.ScannerOutput
	if err := env.db.Where("upload_id = ?", upload.ID).First(&out).Error; err != nil {
		t.Fatalf("load scanner output: %v", err)
	}
	if out.ScannedImageURL != "https://x/y.png" {
		t.Fatalf("scanned image url: want=%q got=%q", "https://x/y.png", out.ScannedImageURL)
	}
	if out.Status != types.StageStatusCompleted {
		t.Fatalf("stage status: want=%s got=%s", types.StageStatusCompleted, out.Status)
	}
	if out.QuestionsDetected != 3 {
		t.Fatalf("questions detected: want=3 got=%d", out.QuestionsDetected)
	}

	if n := env.count(t, &types.SystemLog{}, "action = ?", ActionScannerWebhook); n != 1 {
		t.Fatalf("scanner_webhook log count: want=1 got=%d", n)
	}
	if env.dispatcher.analysisCalls != 1 {
		t.Fatalf("analysis dispatch calls: want=1 got=%d", env.dispatcher.analysisCalls)
	}
	if env.dispatcher.lastAnalysis.ScannedText != "1. What is 2+2? 4" {
		t.Fatalf("forwarded text: got=%q", env.dispatcher.lastAnalysis.ScannedText)
	}

	var analysis types.Analysis
	if err := env.db.Where("upload_id = ?", upload.ID).First(&analysis).Error; err != nil {
		t.Fatalf("load analysis: %v", err)
	}
	if analysis.Status != types.StageStatusProcessing {
		t.Fatalf("analysis stage status: want=%s got=%s", types.StageStatusProcessing, analysis.Status)
	}
}

func TestScannerRedeliveryIsIdempotent(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Scanning)

	res := ScannerResult{
		UploadID:        upload.ID,
		Status:          OutcomeSuccess,
		ScannedImageURL: "https://x/y.png",
	}
	if _, err := env.reconciler.ApplyScannerResult(context.Background(), res, "", ""); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if _, err := env.reconciler.ApplyScannerResult(context.Background(), res, "", ""); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if n := env.count(t, &types.ScannerOutput{}, "upload_id = ?", upload.ID); n != 1 {
		t.Fatalf("scanner output rows: want=1 got=%d", n)
	}
	if env.dispatcher.analysisCalls != 1 {
		t.Fatalf("analysis dispatch calls after redelivery: want=1 got=%d", env.dispatcher.analysisCalls)
	}
	if got := env.uploadStatus(t, upload.ID); got != string(status.Analyzing) {
		t.Fatalf("status after redelivery: want=%s got=%s", status.Analyzing, got)
	}
}

func TestScannerErrorMovesUploadToError(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Scanning)

	res := ScannerResult{UploadID: upload.ID, Status: OutcomeError, Error: "page unreadable"}
	got, err := env.reconciler.ApplyScannerResult(context.Background(), res, "", "")
	if err != nil {
		t.Fatalf("ApplyScannerResult: %v", err)
	}
	if got.Status != string(status.Error) {
		t.Fatalf("status: want=%s got=%s", status.Error, got.Status)
	}
	var out types.ScannerOutput
	if err := env.db.Where("upload_id = ?", upload.ID).First(&out).Error; err != nil {
		t.Fatalf("load scanner output: %v", err)
	}
	if out.Status != types.StageStatusError {
		t.Fatalf("stage status: want=%s got=%s", types.StageStatusError, out.Status)
	}
	if env.dispatcher.analysisCalls != 0 {
		t.Fatalf("analysis dispatch calls: want=0 got=%d", env.dispatcher.analysisCalls)
	}
}

func TestScannerDispatchFailureForcesError(t *testing.T) {
	env := newReconcilerEnv(t)
	env.dispatcher.analysisErr = context.DeadlineExceeded
	upload := env.seedUpload(t, status.Scanning)

	res := ScannerResult{UploadID: upload.ID, Status: OutcomeSuccess}
	_, err := env.reconciler.ApplyScannerResult(context.Background(), res, "", "")
	if !apierr.Is(err, apierr.CodeDownstream) {
		t.Fatalf("want downstream failure, got %v", err)
	}
	if got := env.uploadStatus(t, upload.ID); got != string(status.Error) {
		t.Fatalf("status after dispatch failure: want=%s got=%s", status.Error, got)
	}
}

func TestAnalysisSuccessCompletesUpload(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Analyzing)

	res := AnalysisResult{
		UploadID: upload.ID,
		Status:   OutcomeSuccess,
		AnalysisData: map[string]interface{}{
			"score":    87.5,
			"feedback": "solid work",
		},
		PDFURL: "https://x/report.pdf",
	}
	got, err := env.reconciler.ApplyAnalysisResult(context.Background(), res, "", "")
	if err != nil {
		t.Fatalf("ApplyAnalysisResult: %v", err)
	}
	if got.Status != string(status.Completed) {
		t.Fatalf("status: want=%s got=%s", status.Completed, got.Status)
	}

	var analysis types.Analysis
	if err := env.db.Where("upload_id = ?", upload.ID).First(&analysis).Error; err != nil {
		t.Fatalf("load analysis: %v", err)
	}
	if analysis.Score == nil || *analysis.Score != 87.5 {
		t.Fatalf("score: want=87.5 got=%v", analysis.Score)
	}
	if analysis.Feedback != "solid work" {
		t.Fatalf("feedback: want=%q got=%q", "solid work", analysis.Feedback)
	}
	if analysis.PDFURL != "https://x/report.pdf" {
		t.Fatalf("pdf url: got=%q", analysis.PDFURL)
	}
	if n := env.count(t, &types.SystemLog{}, "action = ?", ActionAIAnalysisWebhook); n != 1 {
		t.Fatalf("ai_analysis_webhook log count: want=1 got=%d", n)
	}
}

func TestAnalysisUnknownUploadRejectedWithoutWrites(t *testing.T) {
	env := newReconcilerEnv(t)

	res := AnalysisResult{UploadID: 99, Status: OutcomeSuccess}
	_, err := env.reconciler.ApplyAnalysisResult(context.Background(), res, "", "")
	if !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if n := env.count(t, &types.Analysis{}, ""); n != 0 {
		t.Fatalf("analysis rows: want=0 got=%d", n)
	}
	if n := env.count(t, &types.SystemLog{}, ""); n != 0 {
		t.Fatalf("system log rows: want=0 got=%d", n)
	}
}

func TestWebhookMissingDiscriminantsRejected(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Scanning)

	cases := []struct {
		name string
		run  func() error
	}{
		{"scanner_missing_upload_id", func() error {
			_, err := env.reconciler.ApplyScannerResult(context.Background(), ScannerResult{Status: OutcomeSuccess}, "", "")
			return err
		}},
		{"scanner_unknown_outcome", func() error {
			_, err := env.reconciler.ApplyScannerResult(context.Background(), ScannerResult{UploadID: upload.ID, Status: "done"}, "", "")
			return err
		}},
		{"analysis_missing_upload_id", func() error {
			_, err := env.reconciler.ApplyAnalysisResult(context.Background(), AnalysisResult{Status: OutcomeError}, "", "")
			return err
		}},
		{"analysis_unknown_outcome", func() error {
			_, err := env.reconciler.ApplyAnalysisResult(context.Background(), AnalysisResult{UploadID: upload.ID, Status: ""}, "", "")
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !apierr.Is(err, apierr.CodeValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
	if got := env.uploadStatus(t, upload.ID); got != string(status.Scanning) {
		t.Fatalf("status mutated by rejected payloads: got=%s", got)
	}
	if n := env.count(t, &types.SystemLog{}, ""); n != 0 {
		t.Fatalf("system log rows: want=0 got=%d", n)
	}
}

func TestAnalysisResultBeforeScanningRejected(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Uploaded)

	res := AnalysisResult{UploadID: upload.ID, Status: OutcomeSuccess}
	_, err := env.reconciler.ApplyAnalysisResult(context.Background(), res, "", "")
	if !apierr.Is(err, apierr.CodeTransition) {
		t.Fatalf("want transition error, got %v", err)
	}
	if got := env.uploadStatus(t, upload.ID); got != string(status.Uploaded) {
		t.Fatalf("status mutated by out-of-order webhook: got=%s", got)
	}
	if n := env.count(t, &types.Analysis{}, ""); n != 0 {
		t.Fatalf("analysis rows: want=0 got=%d", n)
	}
}

func TestScannerRedeliveryResumesStalledHandoff(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Scanned)
	if err := env.db.Create(&types.ScannerOutput{
		UploadID:    upload.ID,
		UserID:      upload.UserID,
		Status:      types.StageStatusCompleted,
		ScannedText: "1. What is 2+2? 4",
	}).Error; err != nil {
		t.Fatalf("seed scanner output: %v", err)
	}

	res := ScannerResult{
		UploadID:    upload.ID,
		Status:      OutcomeSuccess,
		ScannedText: "1. What is 2+2? 4",
	}
	got, err := env.reconciler.ApplyScannerResult(context.Background(), res, "", "")
	if err != nil {
		t.Fatalf("ApplyScannerResult: %v", err)
	}
	if got.Status != string(status.Analyzing) {
		t.Fatalf("status: want=%s got=%s", status.Analyzing, got.Status)
	}
	if env.dispatcher.analysisCalls != 1 {
		t.Fatalf("analysis dispatch calls: want=1 got=%d", env.dispatcher.analysisCalls)
	}
	if n := env.count(t, &types.ScannerOutput{}, "upload_id = ?", upload.ID); n != 1 {
		t.Fatalf("scanner output rows: want=1 got=%d", n)
	}
	var analysis types.Analysis
	if err := env.db.Where("upload_id = ?", upload.ID).First(&analysis).Error; err != nil {
		t.Fatalf("load analysis: %v", err)
	}
	if analysis.Status != types.StageStatusProcessing {
		t.Fatalf("analysis status: want=%s got=%s", types.StageStatusProcessing, analysis.Status)
	}
}

func TestAnalysisResultAcceptedFromScanned(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Scanned)

	score := 91.0
	res := AnalysisResult{
		UploadID: upload.ID,
		Status:   OutcomeSuccess,
		Score:    &score,
		Feedback: "solid work",
	}
	got, err := env.reconciler.ApplyAnalysisResult(context.Background(), res, "", "")
	if err != nil {
		t.Fatalf("ApplyAnalysisResult: %v", err)
	}
	if got.Status != string(status.Completed) {
		t.Fatalf("status: want=%s got=%s", status.Completed, got.Status)
	}
	var analysis types.Analysis
	if err := env.db.Where("upload_id = ?", upload.ID).First(&analysis).Error; err != nil {
		t.Fatalf("load analysis: %v", err)
	}
	if analysis.Status != types.StageStatusCompleted {
		t.Fatalf("analysis status: want=%s got=%s", types.StageStatusCompleted, analysis.Status)
	}
	if analysis.Score == nil || *analysis.Score != score {
		t.Fatalf("score: want=%v got=%v", score, analysis.Score)
	}
}

func TestScannerResultOnCompletedUploadIsNoOp(t *testing.T) {
	env := newReconcilerEnv(t)
	upload := env.seedUpload(t, status.Completed)

	res := ScannerResult{UploadID: upload.ID, Status: OutcomeSuccess}
	got, err := env.reconciler.ApplyScannerResult(context.Background(), res, "", "")
	if err != nil {
		t.Fatalf("ApplyScannerResult: %v", err)
	}
	if got.Status != string(status.Completed) {
		t.Fatalf("status: want=%s got=%s", status.Completed, got.Status)
	}
	if env.dispatcher.analysisCalls != 0 {
		t.Fatalf("analysis dispatch calls: want=0 got=%d", env.dispatcher.analysisCalls)
	}
}
