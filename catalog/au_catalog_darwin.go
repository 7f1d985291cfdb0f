//go:build darwin && cgo

package catalog

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework AVFoundation -framework AudioToolbox -framework AudioUnit -framework Foundation
#import <AVFoundation/AVFoundation.h>
#import <AudioUnit/AudioUnit.h>
#include <stdlib.h>
#include <string.h>

// auComponentInfo is one enumerated AudioUnit's description, copied out of
// an AudioComponentDescription plus its display name.
typedef struct {
	uint32_t type;
	uint32_t subtype;
	uint32_t manufacturer;
	char name[256];
} auComponentInfo;

// list_audio_units enumerates every installed effect/music-effect/instrument
// AudioUnit via AudioComponentFindNext, writing up to maxCount entries into
// out and returning the number written.
int list_audio_units(auComponentInfo* out, int maxCount) {
	int n = 0;
	AudioComponentDescription kinds[3] = {
		{ kAudioUnitType_Effect, 0, 0, 0, 0 },
		{ kAudioUnitType_MusicEffect, 0, 0, 0, 0 },
		{ kAudioUnitType_MusicDevice, 0, 0, 0, 0 },
	};
	for (int k = 0; k < 3; k++) {
		AudioComponent comp = NULL;
		while (n < maxCount) {
			comp = AudioComponentFindNext(comp, &kinds[k]);
			if (comp == NULL) break;
			AudioComponentDescription desc;
			if (AudioComponentGetDescription(comp, &desc) != noErr) continue;
			CFStringRef cfName = NULL;
			AudioComponentCopyName(comp, &cfName);
			out[n].type = desc.componentType;
			out[n].subtype = desc.componentSubType;
			out[n].manufacturer = desc.componentManufacturer;
			out[n].name[0] = 0;
			if (cfName != NULL) {
				CFStringGetCString(cfName, out[n].name, sizeof(out[n].name), kCFStringEncodingUTF8);
				CFRelease(cfName);
			}
			n++;
		}
	}
	return n;
}

void* create_unit_effect(uint32_t type, uint32_t subtype, uint32_t manufacturer) {
	AudioComponentDescription desc = {
		.componentType = type,
		.componentSubType = subtype,
		.componentManufacturer = manufacturer,
		.componentFlags = 0,
		.componentFlagsMask = 0
	};
	AVAudioUnitEffect* effect = [[AVAudioUnitEffect alloc] initWithAudioComponentDescription:desc];
	if (!effect) return NULL;
	return (__bridge_retained void*)effect;
}

void release_unit_effect(void* effectPtr) {
	if (!effectPtr) return;
	CFBridgingRelease(effectPtr);
}

bool set_effect_parameter(void* effectPtr, uint64_t address, float value) {
	if (!effectPtr) return false;
	AVAudioUnitEffect* effect = (__bridge AVAudioUnitEffect*)effectPtr;
	AudioUnit audioUnit = effect.audioUnit;
	if (audioUnit == NULL) return false;
	OSStatus status = AudioUnitSetParameter(audioUnit, (AudioUnitParameterID)address,
	                                      kAudioUnitScope_Global, 0, value, 0);
	return status == noErr;
}

float get_effect_parameter(void* effectPtr, uint64_t address) {
	if (!effectPtr) return 0.0f;
	AVAudioUnitEffect* effect = (__bridge AVAudioUnitEffect*)effectPtr;
	AudioUnit audioUnit = effect.audioUnit;
	if (audioUnit == NULL) return 0.0f;
	AudioUnitParameterValue value = 0.0f;
	OSStatus status = AudioUnitGetParameter(audioUnit, (AudioUnitParameterID)address,
	                                      kAudioUnitScope_Global, 0, &value);
	return status == noErr ? value : 0.0f;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

const auMaxComponents = 512

// AUCatalog resolves plugin ids against the AudioUnits actually installed
// on this machine and instantiates them as AVAudioUnitEffect, adapted from
// the teacher's AU introspection and AVAudioUnitEffect bridge.
type AUCatalog struct {
	mu    sync.Mutex
	cache []PluginDescription
}

// NewAUCatalog constructs a catalog; GetTypes performs the (cached)
// enumeration lazily on first call.
func NewAUCatalog() *AUCatalog { return &AUCatalog{} }

func (c *AUCatalog) GetTypes() ([]PluginDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		return append([]PluginDescription(nil), c.cache...), nil
	}

	buf := make([]C.auComponentInfo, auMaxComponents)
	n := int(C.list_audio_units((*C.auComponentInfo)(unsafe.Pointer(&buf[0])), C.int(auMaxComponents)))

	descs := make([]PluginDescription, 0, n)
	for i := 0; i < n; i++ {
		name := C.GoString(&buf[i].name[0])
		uid := uint32(buf[i].subtype) ^ (uint32(buf[i].manufacturer) << 8)
		descs = append(descs, PluginDescription{
			Format:           FormatAudioUnit,
			Name:             name,
			UID:              uid,
			FileOrIdentifier: osTypeString(uint32(buf[i].type)) + "/" + osTypeString(uint32(buf[i].subtype)) + "/" + osTypeString(uint32(buf[i].manufacturer)),
			ChannelsIn:       2,
			ChannelsOut:      2,
			DoublePrecision:  false,
		})
	}
	c.cache = descs
	return append([]PluginDescription(nil), descs...), nil
}

func (c *AUCatalog) GetTypeForFile(path string) (PluginDescription, error) {
	types, err := c.GetTypes()
	if err != nil {
		return PluginDescription{}, err
	}
	for _, d := range types {
		if d.FileOrIdentifier == path {
			return d, nil
		}
	}
	return PluginDescription{}, fmt.Errorf("%w: no AudioUnit at %s", ErrInvalidPluginID, path)
}

func (c *AUCatalog) CreatePluginInstance(desc PluginDescription, sampleRate float64, blockSize int) (Instance, string) {
	parts := splitOSTypeTriple(desc.FileOrIdentifier)
	if len(parts) != 3 {
		return nil, "malformed AudioUnit identifier: " + desc.FileOrIdentifier
	}
	typeID := stringToOSType(parts[0])
	subtypeID := stringToOSType(parts[1])
	manufacturerID := stringToOSType(parts[2])

	ptr := C.create_unit_effect(C.uint32_t(typeID), C.uint32_t(subtypeID), C.uint32_t(manufacturerID))
	if ptr == nil {
		return nil, fmt.Sprintf("failed to instantiate AudioUnit: %s", desc.Name)
	}

	return &auInstance{ptr: ptr, desc: desc, sampleRate: sampleRate, blockSize: blockSize}, ""
}

type auInstance struct {
	mu        sync.Mutex
	ptr       unsafe.Pointer
	desc      PluginDescription
	sampleRate float64
	blockSize  int
	latency    int
	listeners  []ParameterListener
}

func (a *auInstance) PrepareToPlay(sampleRate float64, blockSize int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sampleRate, a.blockSize = sampleRate, blockSize
}

func (a *auInstance) ReleaseResources() {}

// CheckBusesLayout accepts whatever layout is requested: AVAudioUnitEffect
// is a single-bus in/out AU host object, so bus negotiation beyond the
// session's main buses is not meaningful here; everything beyond main
// in/out surfaces as extra channels at the caller's discretion.
func (a *auInstance) CheckBusesLayout(want BusesLayout) (BusesLayout, bool) {
	return want, true
}

func (a *auInstance) PreferredLayout() BusesLayout {
	return BusesLayout{Inputs: []ChannelSet{Stereo()}, Outputs: []ChannelSet{Stereo()}}
}

func (a *auInstance) Latency() int         { return a.latency }
func (a *auInstance) TailSeconds() float64 { return 0 }
func (a *auInstance) SupportsDouble() bool { return a.desc.DoublePrecision }

// ProcessBlockFloat is not implemented for the real AU bridge: AVAudioUnitEffect
// is driven through AVAudioEngine's render graph, not a per-block Go call, so
// this core's direct-call processing model does not apply to it without a
// render-graph adapter out of scope here (see DESIGN.md).
func (a *auInstance) ProcessBlockFloat(audio [][]float32, midi *MIDIBuffer)  {}
func (a *auInstance) ProcessBlockDouble(audio [][]float64, midi *MIDIBuffer) {}

func (a *auInstance) ParameterValue(identifier string) (float32, bool) {
	addr, ok := parseParamAddress(identifier)
	if !ok {
		return 0, false
	}
	a.mu.Lock()
	ptr := a.ptr
	a.mu.Unlock()
	if ptr == nil {
		return 0, false
	}
	return float32(C.get_effect_parameter(ptr, C.uint64_t(addr))), true
}

func (a *auInstance) SetParameterValue(identifier string, value float32) bool {
	addr, ok := parseParamAddress(identifier)
	if !ok {
		return false
	}
	a.mu.Lock()
	ptr := a.ptr
	listeners := append([]ParameterListener(nil), a.listeners...)
	a.mu.Unlock()
	if ptr == nil {
		return false
	}
	ok = bool(C.set_effect_parameter(ptr, C.uint64_t(addr), C.float(value)))
	if ok {
		for _, l := range listeners {
			l.ParameterChanged(identifier, value)
		}
	}
	return ok
}

func (a *auInstance) Parameters() []Parameter { return nil }

func (a *auInstance) AddParameterListener(l ParameterListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *auInstance) RemoveParameterListener(l ParameterListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, x := range a.listeners {
		if x == l {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// release frees the underlying AVAudioUnitEffect. Not part of the Instance
// interface (destruction is deferred to the wrapper/catalog per spec §9);
// exposed for an eventual message-thread teardown queue.
func (a *auInstance) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ptr != nil {
		C.release_unit_effect(a.ptr)
		a.ptr = nil
	}
}

func stringToOSType(s string) uint32 {
	if len(s) != 4 {
		return 0
	}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

func osTypeString(v uint32) string {
	return string([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func splitOSTypeTriple(s string) []string {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseParamAddress(identifier string) (uint64, bool) {
	var addr uint64
	if _, err := fmt.Sscanf(identifier, "%d", &addr); err != nil {
		return 0, false
	}
	return addr, true
}
