// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mouse

import "fmt"

// FormatMovement formats a decoded packet on one line.
func FormatMovement(m Movement) string {
	result := fmt.Sprintf("%s dx=%+4d dy=%+4d", m.Buttons, m.DX, m.DY)
	if m.XOverflow {
		result += " X-OVF"
	}
	if m.YOverflow {
		result += " Y-OVF"
	}
	return result
}

// FormatFrame formats a raw packet with its decoding.
func FormatFrame(f RawFrame) string {
	return fmt.Sprintf("%02X %02X %02X  %s", f[0], f[1], f[2], FormatMovement(Decode(f)))
}

// FormatCommand returns the human-readable name for a command code
func FormatCommand(code byte) string {
	switch code {
	case CmdReset:
		return "RESET"
	case CmdResend:
		return "RESEND"
	case CmdSetDefaults:
		return "SET_DEFAULTS"
	case CmdDisableReporting:
		return "DISABLE_REPORTING"
	case CmdEnableReporting:
		return "ENABLE_REPORTING"
	case CmdSetSampleRate:
		return "SET_SAMPLE_RATE"
	case CmdGetID:
		return "GET_ID"
	case CmdSetRemote:
		return "SET_REMOTE"
	case CmdSetWrap:
		return "SET_WRAP"
	case CmdResetWrap:
		return "RESET_WRAP"
	case CmdReadData:
		return "READ_DATA"
	case CmdSetStream:
		return "SET_STREAM"
	case CmdStatusRequest:
		return "STATUS_REQUEST"
	case CmdSetResolution:
		return "SET_RESOLUTION"
	case CmdSetScaling21:
		return "SET_SCALING_2_1"
	case CmdSetScaling11:
		return "SET_SCALING_1_1"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", code)
	}
}

// FormatResponse returns the human-readable name for a device response
func FormatResponse(code byte) string {
	switch code {
	case RespAck:
		return "ACK"
	case RespResend:
		return "RESEND"
	case RespError:
		return "ERROR"
	case RespSelfTestOK:
		return "SELF_TEST_OK"
	default:
		return fmt.Sprintf("0x%02X", code)
	}
}
