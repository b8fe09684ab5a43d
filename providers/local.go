package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"
)

const (
	localMaxSeqLen    = 512
	localMinTokenConf = 0.5
)

// LocalProvider runs a quantized token-classification model on-device and
// reports entities in the same JSON array contract the remote providers use,
// so the LLM layer does not need to know which kind of provider answered.
type LocalProvider struct {
	modelPath string
	priority  int
	enabled   bool

	tokenizer *tokenizers.Tokenizer
	id2label  map[string]string
	numLabels int

	mu           sync.Mutex
	session      *onnxruntime.AdvancedSession
	inputTensor  *onnxruntime.Tensor[int64]
	maskTensor   *onnxruntime.Tensor[int64]
	outputTensor *onnxruntime.Tensor[float32]
}

// NewLocalProvider loads the tokenizer and label map eagerly so configuration
// problems surface at startup. The ONNX session itself is created lazily on
// the first call.
func NewLocalProvider(modelPath, tokenizerPath, labelMapPath string, priority int) (*LocalProvider, error) {
	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		onnxruntime.SetSharedLibraryPath(libPath)
	}
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	labelData, err := os.ReadFile(labelMapPath) // #nosec G304 - path comes from configuration
	if err != nil {
		closeTokenizer(tk)
		return nil, fmt.Errorf("failed to read label map: %w", err)
	}
	var labelMap struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(labelData, &labelMap); err != nil {
		closeTokenizer(tk)
		return nil, fmt.Errorf("failed to parse label map: %w", err)
	}

	numLabels := 0
	for idStr := range labelMap.ID2Label {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err == nil && id >= numLabels {
			numLabels = id + 1
		}
	}
	if numLabels == 0 {
		closeTokenizer(tk)
		return nil, fmt.Errorf("label map is empty")
	}

	return &LocalProvider{
		modelPath: modelPath,
		priority:  priority,
		enabled:   true,
		tokenizer: tk,
		id2label:  labelMap.ID2Label,
		numLabels: numLabels,
	}, nil
}

func (p *LocalProvider) Name() string  { return "local" }
func (p *LocalProvider) Model() string { return p.modelPath }
func (p *LocalProvider) Priority() int { return p.priority }
func (p *LocalProvider) Enabled() bool { return p.enabled }

// Call runs NER over the prompt text. The system prompt is ignored; the model
// has a fixed task.
func (p *LocalProvider) Call(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		if err := p.initializeSession(); err != nil {
			return "", fmt.Errorf("failed to initialize session: %w", err)
		}
	}

	encoding := p.tokenizer.EncodeWithOptions(prompt.Text, true, tokenizers.WithReturnOffsets())
	tokenIDs := encoding.IDs
	if len(tokenIDs) > localMaxSeqLen {
		tokenIDs = tokenIDs[:localMaxSeqLen]
	}

	inputData := p.inputTensor.GetData()
	maskData := p.maskTensor.GetData()
	for i := range inputData {
		inputData[i] = 0
		maskData[i] = 0
	}
	for i, id := range tokenIDs {
		inputData[i] = int64(id)
		maskData[i] = 1
	}

	if err := p.session.Run(); err != nil {
		return "", &CallError{Provider: p.Name(), Class: FailureTransient, Message: err.Error()}
	}

	entities := p.decodeEntities(prompt.Text, len(tokenIDs), encoding.Offsets)
	out, err := json.Marshal(entities)
	if err != nil {
		return "", fmt.Errorf("failed to encode entities: %w", err)
	}
	return string(out), nil
}

type localEntity struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// decodeEntities walks the logits per token, grouping consecutive B-/I-
// labels into entities. Confidence is the running average of the grouped
// tokens' softmax scores.
func (p *LocalProvider) decodeEntities(text string, numTokens int, offsets []tokenizers.Offset) []localEntity {
	logits := p.outputTensor.GetData()
	if len(offsets) < numTokens {
		numTokens = len(offsets)
	}

	entities := []localEntity{}
	var curLabel string
	var curConf float64
	var curStart, curEnd uint

	flush := func() {
		if curLabel == "" {
			return
		}
		if int(curEnd) <= len(text) && curStart < curEnd {
			entities = append(entities, localEntity{
				Type:       labelToType(curLabel),
				Text:       text[curStart:curEnd],
				Confidence: curConf,
			})
		}
		curLabel = ""
	}

	for i := 0; i < numTokens; i++ {
		start := i * p.numLabels
		end := start + p.numLabels
		if end > len(logits) {
			break
		}
		tokenLogits := logits[start:end]

		best := 0
		for j := 1; j < len(tokenLogits); j++ {
			if tokenLogits[j] > tokenLogits[best] {
				best = j
			}
		}
		label, ok := p.id2label[fmt.Sprintf("%d", best)]
		if !ok {
			label = "O"
		}
		conf := softmaxProb(tokenLogits, best)
		if conf < localMinTokenConf {
			label = "O"
		}

		base := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
		switch {
		case label == "O":
			flush()
		case strings.HasPrefix(label, "I-") && curLabel == base:
			curEnd = offsets[i][1]
			curConf = (curConf + conf) / 2
		default:
			flush()
			curLabel = base
			curConf = conf
			curStart = offsets[i][0]
			curEnd = offsets[i][1]
		}
	}
	flush()
	return entities
}

func softmaxProb(logits []float32, idx int) float64 {
	var sum float64
	for _, l := range logits {
		sum += math.Exp(float64(l))
	}
	if sum == 0 {
		return 0
	}
	return math.Exp(float64(logits[idx])) / sum
}

// labelToType maps model NER labels to the pipeline's type vocabulary.
// Unknown labels pass through lowercased so new model versions degrade
// gracefully instead of being dropped.
func labelToType(label string) string {
	switch strings.ToUpper(label) {
	case "EMAIL", "EMAIL_ADDRESS":
		return "email"
	case "PHONE", "PHONE_NUMBER", "TEL":
		return "phone"
	case "SSN", "US_SSN":
		return "ssn"
	case "CREDIT_CARD", "CARD", "CREDITCARDNUMBER":
		return "credit_card"
	case "PERSON", "NAME", "GIVENNAME", "SURNAME":
		return "person_name"
	case "ADDRESS", "STREET", "LOCATION":
		return "address"
	case "DOB", "DATE_OF_BIRTH", "BIRTHDAY":
		return "date_of_birth"
	case "IP", "IP_ADDRESS", "IPV4", "IPV6":
		return "ip_address"
	case "USERNAME", "USER":
		return "username"
	case "PASSWORD", "PASS":
		return "password"
	default:
		return strings.ToLower(label)
	}
}

func (p *LocalProvider) initializeSession() error {
	shape := onnxruntime.NewShape(1, localMaxSeqLen)
	inputTensor, err := onnxruntime.NewTensor(shape, make([]int64, localMaxSeqLen))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	maskTensor, err := onnxruntime.NewTensor(shape, make([]int64, localMaxSeqLen))
	if err != nil {
		destroyValue(inputTensor)
		return fmt.Errorf("failed to create mask tensor: %w", err)
	}
	outputShape := onnxruntime.NewShape(1, localMaxSeqLen, int64(p.numLabels))
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](outputShape)
	if err != nil {
		destroyValue(inputTensor)
		destroyValue(maskTensor)
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(p.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]onnxruntime.Value{inputTensor, maskTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		destroyValue(inputTensor)
		destroyValue(maskTensor)
		destroyValue(outputTensor)
		return fmt.Errorf("failed to create session: %w", err)
	}

	p.session = session
	p.inputTensor = inputTensor
	p.maskTensor = maskTensor
	p.outputTensor = outputTensor
	return nil
}

// Close releases the tokenizer and ONNX resources.
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.session != nil {
		if err := p.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
		p.session = nil
	}
	if p.inputTensor != nil {
		if err := p.inputTensor.Destroy(); err != nil {
			errs = append(errs, err)
		}
		p.inputTensor = nil
	}
	if p.maskTensor != nil {
		if err := p.maskTensor.Destroy(); err != nil {
			errs = append(errs, err)
		}
		p.maskTensor = nil
	}
	if p.outputTensor != nil {
		if err := p.outputTensor.Destroy(); err != nil {
			errs = append(errs, err)
		}
		p.outputTensor = nil
	}
	if p.tokenizer != nil {
		closeTokenizer(p.tokenizer)
		p.tokenizer = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

func closeTokenizer(tk *tokenizers.Tokenizer) {
	if err := tk.Close(); err != nil {
		log.Printf("[LocalProvider] Failed to close tokenizer: %v", err)
	}
}

func destroyValue(v onnxruntime.Value) {
	if err := v.Destroy(); err != nil {
		log.Printf("[LocalProvider] Failed to destroy tensor: %v", err)
	}
}
