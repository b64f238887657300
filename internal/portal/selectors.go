package portal

// CSS selectors for the appointment portal.
// Centralising them makes future updates trivial.
const (
	// Sign-in page
	InfoOverlayArrowSelector = `.down-arrow`
	SignInFormSelector       = `#sign_in_form`
	EmailFieldSelector       = `#user_email`
	PasswordFieldSelector    = `#user_password`
	PolicyCheckboxSelector   = `input[name="policy_confirmed"]`
	PolicyContainerSelector  = `.icheckbox`
	SignInButtonSelector     = `input.button.primary[name='commit']`
	ErrorMessageSelector     = `.error-message`

	// Appointment overview
	ApplicationCardSelector = `.application`
	CardContinueSelector    = `a.button.primary.small`
	AccordionSelector       = `.accordion`
	AccordionTitleSelector  = `.accordion-item a.accordion-title`
	AccordionLinkSelector   = `a.button.small.primary`

	// Reschedule page
	FacilitySelectSelector = `#appointments_consulate_appointment_facility_id`
	DatePickerSelector     = `#appointments_consulate_appointment_date`
	TimeSelectSelector     = `#appointments_consulate_appointment_time`
	SubmitButtonSelector   = `#appointments_submit`
	ConfirmationSelector   = `.confirmation-page`
)

// success indicators checked after submitting the sign-in form,
// matched with chromedp.BySearch so both xpath and css work
var loginSuccessSelectors = []string{
	`//a[contains(text(), "Continue")]`,
	ApplicationCardSelector,
	`.consular-appt`,
}
