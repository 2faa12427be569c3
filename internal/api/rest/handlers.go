package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apiws "github.com/sensei-project/sensei-bridged/internal/api/websocket"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

func bindPinIndex(c *gin.Context, out *int) error {
	v, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return err
	}
	*out = v
	return nil
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	role, err := s.credentials.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.jwt.GenerateToken(req.Username, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Status())
}

type pinSummary struct {
	Index   int    `json:"index"`
	PinType string `json:"pin_type"`
}

var pinTypeNames = map[types.PinType]string{
	types.PinTypeDisabled:     "disabled",
	types.PinTypeDigitalInput: "digital_input",
	types.PinTypeAnalogInput:  "analog_input",
	types.PinTypeImuInput:     "imu_input",
}

// maxProbeIndex bounds the pin listing scan; the processor exposes no
// iterator over its dense mapper array, so the handler probes every
// index instead.
const maxProbeIndex = 512

func (s *Server) listPins(c *gin.Context) {
	var out []pinSummary
	for i := 0; i < maxProbeIndex; i++ {
		pinType, ok := s.processor.PinType(i)
		if !ok {
			continue
		}
		out = append(out, pinSummary{Index: i, PinType: pinTypeNames[pinType]})
	}
	c.JSON(http.StatusOK, gin.H{"pins": out})
}

type commandRequest struct {
	Tag            string      `json:"tag" binding:"required"`
	PinType        string      `json:"pin_type,omitempty"`
	SendingMode    string      `json:"sending_mode,omitempty"`
	DeltaTicks     uint32      `json:"delta_ticks,omitempty"`
	SamplingRateHz float64     `json:"sampling_rate_hz,omitempty"`
	AdcBits        uint8       `json:"adc_bits,omitempty"`
	FilterOrder    uint8       `json:"filter_order,omitempty"`
	CutoffHz       float64     `json:"cutoff_hz,omitempty"`
	SliderThresh   uint16      `json:"slider_threshold,omitempty"`
	Invert         bool        `json:"invert,omitempty"`
	InputRange     [2]float64  `json:"input_range,omitempty"`
	OutputRange    [2]float64  `json:"output_range,omitempty"`
	DigitalValue   bool        `json:"digital_value,omitempty"`
	Enabled        bool        `json:"enabled,omitempty"`
	Muted          bool        `json:"muted,omitempty"`
	VerifyAckFlag  bool        `json:"verify_ack_flag,omitempty"`
}

var commandTagByName = map[string]types.CommandTag{
	"SET_PIN_TYPE":            types.SetPinType,
	"SET_SENDING_MODE":        types.SetSendingMode,
	"SET_SENDING_DELTA_TICKS": types.SetSendingDeltaTicks,
	"SET_SAMPLING_RATE":       types.SetSamplingRate,
	"SET_ADC_BIT_RESOLUTION":  types.SetAdcBitResolution,
	"SET_LOWPASS_FILTER_ORDER": types.SetLowpassFilterOrder,
	"SET_LOWPASS_CUTOFF":      types.SetLowpassCutoff,
	"SET_SLIDER_THRESHOLD":    types.SetSliderThreshold,
	"SET_INVERT_ENABLED":      types.SetInvertEnabled,
	"SET_INPUT_SCALE_RANGE":   types.SetInputScaleRange,
	"SET_OUTPUT_RANGE":        types.SetOutputRange,
	"SEND_DIGITAL_PIN_VALUE":  types.SendDigitalPinValue,
	"ENABLE_SENDING":          types.EnableSending,
	"SET_MUTE_STATUS":         types.SetMuteStatus,
	"VERIFY_ACKS":             types.VerifyAcks,
	"RELOAD_CONFIG":           types.ReloadConfig,
}

var pinTypeByRequestName = map[string]types.PinType{
	"disabled":      types.PinTypeDisabled,
	"digital_input": types.PinTypeDigitalInput,
	"analog_input":  types.PinTypeAnalogInput,
	"imu_input":     types.PinTypeImuInput,
}

var sendingModeByRequestName = map[string]types.SendingMode{
	"on_value_changed": types.SendOnValueChanged,
	"continuous":       types.SendContinuous,
	"on_press":         types.SendOnPress,
	"on_release":       types.SendOnRelease,
}

// targetForTag assigns every command tag to the component that owns
// it: mapping-layer tags apply to the processor, SEND_DIGITAL_PIN_VALUE
// and the per-pin wire-config tags additionally need a frontend leg,
// and the four control tags are internal to the event handler.
func targetForTag(tag types.CommandTag) types.CommandTarget {
	switch tag {
	case types.SetMuteStatus, types.VerifyAcks, types.EnableSending, types.ReloadConfig:
		return types.TargetInternal
	case types.SendDigitalPinValue:
		return types.TargetHwFrontend
	default:
		return types.TargetMapping
	}
}

func (s *Server) submitPinCommand(c *gin.Context) {
	var pinIndex int
	if err := bindPinIndex(c, &pinIndex); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pin index"})
		return
	}

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tag, ok := commandTagByName[req.Tag]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized command tag"})
		return
	}

	cmd := types.Command{
		TimestampValue: uint32(time.Now().Unix()),
		Target:         targetForTag(tag),
		PinIndex:       pinIndex,
		Tag:            tag,
		PinType:        pinTypeByRequestName[req.PinType],
		SendingMode:    sendingModeByRequestName[req.SendingMode],
		DeltaTicks:     req.DeltaTicks,
		SamplingRateHz: req.SamplingRateHz,
		AdcBits:        req.AdcBits,
		FilterOrder:    req.FilterOrder,
		CutoffHz:       req.CutoffHz,
		SliderThresh:   req.SliderThresh,
		Invert:         req.Invert,
		InputRange:     types.Range{Low: req.InputRange[0], High: req.InputRange[1]},
		OutputRange:    types.Range{Low: req.OutputRange[0], High: req.OutputRange[1]},
		DigitalValue:   req.DigitalValue,
		Enabled:        req.Enabled,
		Muted:          req.Muted,
		VerifyAckFlag:  req.VerifyAckFlag,
	}

	s.eventQueue.Push(cmd)
	c.JSON(http.StatusAccepted, gin.H{"message": "command accepted"})
}

func (s *Server) reloadConfig(c *gin.Context) {
	if err := s.reloader.ReloadConfig(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "config reload requested"})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsLive upgrades to the live feed, authenticating via a query-string
// token since the initial upgrade request carries no body for an
// in-band auth handshake to ride on.
func (s *Server) wsLive(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
		return
	}
	if _, err := s.jwt.ValidateToken(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed")
		return
	}
	client := apiws.NewClient(s.hub, conn, s.log)
	go client.Serve()
}
