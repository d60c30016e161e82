package usecase

// User-facing messages shown in the form's error and notice fields.
const (
	msgValidation      = "Tajuk, Nama Pelapor, dan Butiran Laporan tidak boleh kosong."
	msgPermission      = "Tidak dapat mengakses mikrofon/kamera. Sila semak kebenaran."
	msgSessionError    = "Ralat berlaku dengan sesi rakaman."
	msgSessionClosed   = "Sesi rakaman telah ditutup oleh pelayan."
	msgAnalyzing       = "Gemini sedang menganalisis dan menambah maklumat berdasarkan web.."
	msgSending         = "Menghantar ke Telegram..."
	msgAnalysisUnknown = "Berlaku ralat tidak diketahui semasa analisis."
	msgDeliveryUnknown = "Berlaku ralat tidak diketahui semasa menghantar ke Telegram."
	msgDelivered       = "Laporan berjaya dihantar ke Telegram! ID Mesej: %d"
	msgBusy            = "Permintaan lain sedang diproses."
)
