package inference

// Commands understood by the runner script.
const (
	CommandGetPageText                = "get_page_text"
	CommandGetReaderModeContent       = "get_reader_mode_content"
	CommandGetPageInfo                = "get_page_info"
	CommandGetSelectionText           = "get_selection_text"
	CommandGetHeadlessPageText        = "get_headless_page_text"
	CommandCreateMLEngine             = "create_ml_engine"
	CommandRunMLEngine                = "run_ml_engine"
	CommandDestroyMLEngine            = "destroy_ml_engine"
	CommandCreateTranslationsSession  = "create_translations_session"
	CommandRunTranslationsSession     = "run_translations_session"
	CommandDestroyTranslationsSession = "destroy_translations_session"
)
