package vision

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/tracking"
	"github.com/teslashibe/go-putt/pkg/tracking/detection"
)

// SportsBall is the COCO class a putting ball is detected as.
const SportsBall = "sports ball"

// YOLODetector uses a YOLOv8 ONNX model for whole-frame ball detection.
type YOLODetector struct {
	net       gocv.Net
	config    YOLOConfig
	mu        sync.Mutex
	inputSize image.Point
	classID   int
	logger    *slog.Logger
}

// YOLOConfig holds YOLO detector configuration
type YOLOConfig struct {
	ModelPath        string  `json:"model_path" yaml:"model_path" mapstructure:"model_path"`
	ConfidenceThresh float32 `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
	NMSThresh        float32 `json:"nms" yaml:"nms" mapstructure:"nms"`
	InputWidth       int     `json:"input_width" yaml:"input_width" mapstructure:"input_width"`
	InputHeight      int     `json:"input_height" yaml:"input_height" mapstructure:"input_height"`
	// Class is the COCO class name to keep.
	Class string `json:"class" yaml:"class" mapstructure:"class"`
}

// DefaultYOLOConfig returns production defaults for YOLOv8n
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.35,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
		Class:            SportsBall,
	}
}

// NewYOLO loads the model.
func NewYOLO(cfg YOLOConfig, logger *slog.Logger) (*YOLODetector, error) {
	if cfg.Class == "" {
		cfg.Class = SportsBall
	}
	classID := classIndex(cfg.Class)
	if classID < 0 {
		return nil, fmt.Errorf("unknown COCO class %q", cfg.Class)
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		classID:   classID,
		logger:    log.Or(logger, "yolo"),
	}, nil
}

// Detect implements detection.Detector. Boxes are in frame pixels.
func (d *YOLODetector) Detect(frame tracking.Frame) ([]detection.Detection, error) {
	img, err := matOf(frame)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	dets := d.parse(output, float32(img.Cols()), float32(img.Rows()))
	if len(dets) > 0 {
		d.logger.Debug("ball candidates", "frame", frame.Index, "count", len(dets))
	}
	return dets, nil
}

// parse reads the [1, 84, 8400] YOLOv8 tensor: 4 box values then 80 class
// scores per anchor. Only the configured class is kept.
func (d *YOLODetector) parse(output gocv.Mat, imgW, imgH float32) []detection.Detection {
	rows := output.Cols()
	cols := output.Rows()

	data, err := output.DataPtrFloat32()
	if err != nil {
		d.logger.Warn("reading YOLO output", "error", err)
		return nil
	}

	var boxes []image.Rectangle
	var confidences []float32
	for i := range rows {
		maxScore := float32(0)
		maxClassID := 0
		for c := 4; c < cols; c++ {
			if score := data[c*rows+i]; score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}
		if maxClassID != d.classID || maxScore < d.config.ConfidenceThresh {
			continue
		}

		cx := data[0*rows+i]
		cy := data[1*rows+i]
		w := data[2*rows+i]
		h := data[3*rows+i]

		x1 := int((cx - w/2) * imgW / float32(d.config.InputWidth))
		y1 := int((cy - h/2) * imgH / float32(d.config.InputHeight))
		x2 := int((cx + w/2) * imgW / float32(d.config.InputWidth))
		y2 := int((cy + h/2) * imgH / float32(d.config.InputHeight))

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		confidences = append(confidences, maxScore)
	}
	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)
	dets := make([]detection.Detection, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		dets = append(dets, detection.Detection{
			X:          float64(box.Min.X),
			Y:          float64(box.Min.Y),
			W:          float64(box.Dx()),
			H:          float64(box.Dy()),
			Confidence: float64(confidences[idx]),
		})
	}
	return dets
}

// Close releases the detector resources
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func classIndex(name string) int {
	for i, c := range COCOClasses {
		if c == name {
			return i
		}
	}
	return -1
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
