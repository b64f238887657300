package portal

// js snippets evaluated in the portal pages. Placeholders are filled
// with fmt.Sprintf and %q so selectors arrive properly quoted.

// %q: policy checkbox selector
const policyCheckedJS = `
(() => {
	const cb = document.querySelector(%q);
	return !!(cb && cb.checked);
})()`

// %q: policy checkbox selector
const policyForceCheckJS = `
(() => {
	const cb = document.querySelector(%q);
	if (!cb) return false;
	cb.checked = true;
	cb.dispatchEvent(new Event('change', { bubbles: true }));
	return cb.checked;
})()`

// %q: facility select selector, facility option value. The portal loads
// the calendar through the select's change handler, so assigning the
// value alone is not enough; the event must be dispatched explicitly.
const selectFacilityJS = `
(() => {
	const sel = document.querySelector(%q);
	if (!sel) return false;
	const value = %q;
	sel.value = value;
	if (sel.value !== value) return false;
	sel.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`

// %q: card selector, IVR marker text, continue button selector
const clickCardContinueJS = `
(() => {
	const cards = Array.from(document.querySelectorAll(%q));
	const card = cards.find(c => c.innerText.includes(%q));
	if (!card) return false;
	const btn = card.querySelector(%q);
	if (!btn) return false;
	btn.scrollIntoView(true);
	btn.click();
	return true;
})()`

// %q: accordion title selector, reschedule link selector
const openAccordionJS = `
(() => {
	const titles = Array.from(document.querySelectorAll(%q));
	const title = titles.find(t => t.innerText.includes('Reschedule Appointment'));
	if (!title) return false;
	title.click();
	const item = title.closest('.accordion-item');
	const content = item ? item.querySelector('.accordion-content') : null;
	const link = content ? content.querySelector(%q) : null;
	if (!link) return false;
	link.click();
	return true;
})()`

// %q: time select selector
const pickFirstTimeJS = `
(() => {
	const sel = document.querySelector(%q);
	if (!sel || sel.options.length < 2) return false;
	sel.selectedIndex = 1; // index 0 is the placeholder
	sel.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`
