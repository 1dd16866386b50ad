package fault

import "errors"

const genericMessage = "Processing failed. Please try again."

// UserMessage maps err to the guidance shown in error mode.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return genericMessage
	}

	switch fe.Kind {
	case KindInvalidConfiguration:
		return "Provider and patient languages must be different."
	case KindCapture:
		switch fe.Capture {
		case CaptureNotAllowed:
			return "Microphone access denied. Please enable microphone access and try again."
		case CaptureNoDevice:
			return "No microphone found. Please connect a microphone and try again."
		default:
			return "Unable to record audio. Please check your microphone and try again."
		}
	case KindNoAudioCaptured:
		return "No audio recorded. Please try recording again."
	case KindNoSpeechDetected:
		return "No speech detected. Please speak clearly and try again."
	case KindTranslationEmpty:
		return "Translation failed. Please try again."
	case KindStageTimeout:
		return "Request timed out. Please check your connection and try again."
	case KindNetwork:
		return "Network error. Please check your internet connection."
	case KindAuth:
		return "The translation service rejected the credentials. Please check the API key."
	case KindRateLimited:
		return "The translation service is busy. Please wait a moment and try again."
	case KindConcurrentTurn:
		return "A turn is already being processed."
	case KindBusy:
		return "Please wait for the current turn to finish."
	case KindNoActiveSession:
		return "No consultation is in progress."
	case KindEmptySession:
		return "Record at least one turn before ending the consultation."
	default:
		return genericMessage
	}
}
