package inference

import (
	"fmt"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend selects the ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend uses the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseProviderBackend maps a flag or config value to a backend. Empty means CPU.
func ParseProviderBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(s); b {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return b, nil
	default:
		return "", errors.Errorf("no matching provider backend registered: %s", s)
	}
}

// ProviderConfig holds the execution provider selection and its options.
type ProviderConfig struct {
	// Backend specifies the backend to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for CUDA.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// DeviceType is the OpenVINO target, e.g. CPU, GPU or NPU.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// CoreMLFlags are passed as-is to the CoreML provider.
	CoreMLFlags uint32 `json:"coreml_flags" yaml:"coreml_flags"`
	// IntraOpThreads bounds parallelism inside a node. 0 lets the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads bounds parallelism across independent nodes. 0 lets the runtime decide.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// openVINOOptions builds the provider option map.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
func (c ProviderConfig) openVINOOptions() map[string]string {
	deviceType := c.DeviceType
	if deviceType == "" {
		deviceType = "CPU"
	}
	opts := map[string]string{
		"device_type": deviceType,
	}
	if c.IntraOpThreads > 0 {
		opts["num_of_threads"] = fmt.Sprintf("%d", c.IntraOpThreads)
	}
	return opts
}

// newSessionOptions creates session options with threading, graph optimization and
// the configured execution provider applied. The caller destroys the result.
func (c ProviderConfig) newSessionOptions() (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	fail := func(err error, msg string) (*ort.SessionOptions, error) {
		options.Destroy()
		return nil, errors.Wrap(err, msg)
	}

	if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
		return fail(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
		return fail(err, "error setting inter-op threads")
	}
	// Fusion and constant folding at load time.
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return fail(err, "error setting graph optimization level")
	}

	switch c.Backend {
	case "", CPUProviderBackend:
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(c.CoreMLFlags); err != nil {
			return fail(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(c.openVINOOptions()); err != nil {
			return fail(err, "error enabling OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fail(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": fmt.Sprintf("%d", c.DeviceID)}); err != nil {
			return fail(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fail(err, "error enabling CUDA")
		}
	default:
		return fail(errors.Errorf("unknown backend %q", c.Backend), "error selecting execution provider")
	}

	return options, nil
}
