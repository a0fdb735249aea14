package uploader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path"

	logging "github.com/ipfs/go-log/v2"

	"github.com/maskdetect/roboflow-upload/roboflow"
)

var log = logging.Logger("rfup")

// ImageUploader is the single outbound capability: push one image with
// its split and class tag to the remote project.
type ImageUploader interface {
	Upload(ctx context.Context, rec Record) error
}

type clientUploader struct {
	client  *roboflow.Client
	project string
}

func (cu *clientUploader) Upload(ctx context.Context, rec Record) error {
	_, err := cu.client.Upload(ctx, cu.project, rec.Path, rec.Split, []string{rec.Class})
	return err
}

func NewClientUploader(client *roboflow.Client, project string) ImageUploader {
	return &clientUploader{client: client, project: project}
}

type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
}

type UploadCallback interface {
	OnSuccess(rec Record)
	OnError(rec Record, err error)
}

type logCallback struct{}

func (cc *logCallback) OnSuccess(Record) {}
func (cc *logCallback) OnError(rec Record, err error) {
	log.Warnf("failed to upload %s: %s", rec.Name, err)
}

type csvCallback struct {
	dir string
}

func (cc *csvCallback) OnSuccess(rec Record) {
	cc.write(rec, "ok", "")
}

func (cc *csvCallback) OnError(rec Record, err error) {
	log.Warnf("failed to upload %s: %s", rec.Name, err)
	cc.write(rec, "failed", err.Error())
}

func (cc *csvCallback) write(rec Record, status, detail string) {
	manifestPath := path.Join(cc.dir, "upload-manifest.csv")
	_, err := os.Stat(manifestPath)
	if err != nil && !os.IsNotExist(err) {
		log.Fatal(err)
	}
	var isCreateAction bool
	if err != nil && os.IsNotExist(err) {
		isCreateAction = true
	}
	f, err := os.OpenFile(manifestPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	csvWriter := csv.NewWriter(f)
	defer csvWriter.Flush()
	if isCreateAction {
		csvWriter.Write([]string{"name", "split", "class", "status", "detail"})
	}
	if err := csvWriter.Write([]string{rec.Name, rec.Split, rec.Class, status, detail}); err != nil {
		log.Fatal(err)
	}
}

// LogCallback only logs per-image failures.
func LogCallback() UploadCallback {
	return &logCallback{}
}

// CSVCallback appends each upload outcome to upload-manifest.csv in dir.
func CSVCallback(dir string) UploadCallback {
	return &csvCallback{dir: dir}
}

type Uploader struct {
	cfg *Config
	up  ImageUploader
	cb  UploadCallback
}

func New(cfg *Config, up ImageUploader, cb UploadCallback) *Uploader {
	if cb == nil {
		cb = LogCallback()
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Uploader{cfg: cfg, up: up, cb: cb}
}

// Run makes one sequential pass: verify the layout, write data.yaml,
// then upload every image. A failed upload is counted and skipped, it
// never aborts the pass. The returned error is non-nil only for fatal
// problems before the first upload, or context cancellation.
func (u *Uploader) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	stats, err := Verify(u.cfg.DatasetPath, u.cfg.Splits)
	if err != nil {
		return summary, err
	}
	total := stats.Total()
	if total == 0 {
		log.Warn("no images found, nothing to upload")
		return summary, nil
	}

	mdPath, err := WriteMetadata(u.cfg.DatasetPath, u.cfg.Splits, stats.Classes())
	if err != nil {
		return summary, err
	}
	log.Infof("wrote dataset descriptor: %s", mdPath)

	fmt.Printf("uploading %d images to project %q\n", total, u.cfg.ProjectID)
	var folder string
	folderCount := 0
	records := ListAsync(u.cfg.DatasetPath, u.cfg.Splits)
	for rec := range records {
		select {
		case <-ctx.Done():
			go func() {
				// unblock the walker
				for range records {
				}
			}()
			return summary, ctx.Err()
		default:
		}

		if f := fmtFolder(rec.Split, rec.Class); f != folder {
			folder = f
			folderCount = 0
			fmt.Printf("uploading %d images from %s\n", stats[rec.Split][rec.Class], folder)
		}

		summary.Attempted++
		folderCount++
		if err := u.up.Upload(ctx, rec); err != nil {
			summary.Failed++
			u.cb.OnError(rec, err)
		} else {
			summary.Succeeded++
			u.cb.OnSuccess(rec)
		}

		if folderCount%u.cfg.ProgressEvery == 0 || folderCount == stats[rec.Split][rec.Class] {
			fmt.Printf("  progress: %d/%d %s\n", folderCount, stats[rec.Split][rec.Class], folder)
		}
	}

	fmt.Printf("upload complete: attempted %d, succeeded %d, failed %d\n",
		summary.Attempted, summary.Succeeded, summary.Failed)
	return summary, nil
}
